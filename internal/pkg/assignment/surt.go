package assignment

import (
	"math"
	"net"
	"strings"

	"github.com/internetarchive/frontier/pkg/models"
)

// SURTAuthorityPolicy keys queues by the reversed host so that keys of one
// domain sort next to each other: "www.example.com:8080" gives
// "com.example.www:8080".
type SURTAuthorityPolicy struct{}

// ClassKey returns the reversed host of the record or NoHostKey
func (p *SURTAuthorityPolicy) ClassKey(r *models.Record) string {
	if h := host(r); h != "" {
		return reverseHost(h)
	}

	return NoHostKey
}

// MaxKeys is unbounded
func (p *SURTAuthorityPolicy) MaxKeys() int {
	return math.MaxInt32
}

// reverseHost turns "www.google.com" -> "com.google.www".
// It preserves ports, ignores trailing dots, normalizes to lower case,
// and leaves IPs (v4/v6) unchanged.
func reverseHost(hostport string) string {
	host := hostport
	port := ""

	if h, p, err := net.SplitHostPort(hostport); err == nil {
		host, port = h, p
	}

	trimmed := strings.TrimSuffix(strings.ToLower(host), ".")
	if ip := net.ParseIP(trimmed); ip != nil {
		if port != "" {
			return net.JoinHostPort(host, port)
		}
		return host
	}

	var b strings.Builder
	b.Grow(len(trimmed))

	i := len(trimmed)
	first := true
	for i > 0 {
		j := strings.LastIndexByte(trimmed[:i], '.')
		if !first {
			b.WriteByte('.')
		}
		first = false
		if j == -1 {
			b.WriteString(trimmed[:i])
			break
		}
		b.WriteString(trimmed[j+1 : i])
		i = j
	}

	out := b.String()
	if port != "" {
		return out + ":" + port
	}
	return out
}
