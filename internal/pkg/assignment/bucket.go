package assignment

import (
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/asaskevich/govalidator"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/zeebo/xxh3"
)

const (
	// DefaultBuckets is the bucket count used when none is configured
	DefaultBuckets = 1021
	// DefaultNoIPBuckets is the size of the NO-IP bucket range
	DefaultNoIPBuckets = 16

	noIPPrefix = "NO-IP-"
)

// Resolver gives the IP a host was resolved to, if known. The frontier never
// resolves hosts itself.
type Resolver interface {
	LookupIP(host string) (string, bool)
}

// BucketPolicy spreads hosts over a fixed number of numbered buckets, keyed
// by the hash of their IP. Hosts without a known IP go to a separate
// "NO-IP-<n>" range, hashed on the host name.
type BucketPolicy struct {
	buckets     uint64
	noIPBuckets uint64
	resolver    Resolver
}

// NewBucketPolicy returns a BucketPolicy. Non-positive counts fall back to
// the defaults; resolver may be nil.
func NewBucketPolicy(buckets, noIPBuckets int, resolver Resolver) *BucketPolicy {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	if noIPBuckets <= 0 {
		noIPBuckets = DefaultNoIPBuckets
	}

	return &BucketPolicy{
		buckets:     uint64(buckets),
		noIPBuckets: uint64(noIPBuckets),
		resolver:    resolver,
	}
}

// ClassKey returns a bucket number in [0, buckets), a NO-IP bucket or NoHostKey
func (p *BucketPolicy) ClassKey(r *models.Record) string {
	hostport := host(r)
	if hostport == "" {
		return NoHostKey
	}

	hostname := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		hostname = h
	}
	hostname = strings.Trim(hostname, "[]")

	ip := ""
	if govalidator.IsIP(hostname) {
		ip = hostname
	} else if p.resolver != nil {
		if resolved, ok := p.resolver.LookupIP(hostname); ok && govalidator.IsIP(resolved) {
			ip = resolved
		}
	}

	if ip == "" {
		return noIPPrefix + strconv.FormatUint(xxh3.HashString(hostname)%p.noIPBuckets, 10)
	}

	return strconv.FormatUint(xxh3.HashString(ip)%p.buckets, 10)
}

// MaxKeys counts the IP buckets, the NO-IP range and NoHostKey
func (p *BucketPolicy) MaxKeys() int {
	return int(p.buckets + p.noIPBuckets + 1)
}

// HostCache is a concurrency-safe host to IP table, filled by whatever
// resolves hosts for the crawl.
type HostCache struct {
	mu  sync.RWMutex
	ips map[string]string
}

// NewHostCache returns an empty HostCache
func NewHostCache() *HostCache {
	return &HostCache{ips: make(map[string]string)}
}

// Remember records the IP of host
func (c *HostCache) Remember(host, ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ips[strings.ToLower(host)] = ip
}

// Forget drops host from the cache
func (c *HostCache) Forget(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.ips, strings.ToLower(host))
}

// LookupIP implements Resolver
func (c *HostCache) LookupIP(host string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ip, ok := c.ips[strings.ToLower(host)]
	return ip, ok
}
