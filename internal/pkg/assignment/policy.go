// Package assignment maps URIs to the key of the per-key queue they belong
// to. The key is what politeness is enforced on.
package assignment

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/internetarchive/frontier/pkg/models"
)

// NoHostKey is the queue key of URIs whose host cannot be determined
const NoHostKey = "NO-HOST"

// ErrUnknownPolicy is returned by New for an unknown policy name
var ErrUnknownPolicy = errors.New("unknown queue assignment policy")

// Policy computes the class key of a record. Implementations never fail: a
// record that cannot be classified gets NoHostKey.
type Policy interface {
	ClassKey(r *models.Record) string
	MaxKeys() int
}

// Options selects and configures a Policy
type Options struct {
	Name        string // host, surt-authority or bucket
	Buckets     int
	NoIPBuckets int
	Resolver    Resolver
}

// New returns the policy named in opts
func New(opts Options) (Policy, error) {
	switch opts.Name {
	case "", "host":
		return &HostPolicy{}, nil
	case "surt-authority":
		return &SURTAuthorityPolicy{}, nil
	case "bucket":
		return NewBucketPolicy(opts.Buckets, opts.NoIPBuckets, opts.Resolver), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, opts.Name)
}

// host returns the normalized host[:port] of the record URL, or an empty
// string if there is none.
func host(r *models.Record) string {
	if r == nil {
		return ""
	}

	u, err := models.Normalize(r.URL)
	if err != nil {
		// Best effort on something url.Parse still accepts.
		u, err = url.Parse(r.URL)
		if err != nil {
			return ""
		}
	}

	return models.Host(u)
}
