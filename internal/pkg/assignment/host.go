package assignment

import (
	"math"

	"github.com/internetarchive/frontier/pkg/models"
)

// HostPolicy gives one queue per host[:port], the default port being omitted.
type HostPolicy struct{}

// ClassKey returns the record host[:port] or NoHostKey
func (p *HostPolicy) ClassKey(r *models.Record) string {
	if h := host(r); h != "" {
		return h
	}

	return NoHostKey
}

// MaxKeys is unbounded for host keys
func (p *HostPolicy) MaxKeys() int {
	return math.MaxInt32
}
