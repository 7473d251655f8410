package models

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrEmptyURL is returned when canonicalizing an empty string
	ErrEmptyURL = errors.New("empty URL")
	// ErrMissingScheme is returned for relative or scheme-less URLs
	ErrMissingScheme = errors.New("URL has no scheme")
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
}

// Normalize parses rawURL and returns it with a lower-cased scheme and host,
// an IDNA encoded host, no default port, no fragment and a non-empty path.
func Normalize(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	if u.Scheme == "" {
		return nil, ErrMissingScheme
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Fragment = ""
	u.RawFragment = ""

	if u.Opaque != "" {
		// dns:example.com and the like
		u.Opaque = strings.TrimSuffix(strings.ToLower(u.Opaque), ".")
		return u, nil
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if ascii, err := idna.ToASCII(host); err == nil {
		host = ascii
	}

	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	port := u.Port()
	if port != "" && defaultPorts[u.Scheme] != port {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}

	if u.Host != "" && u.Path == "" {
		u.Path = "/"
	}

	return u, nil
}

// Host returns the host of a normalized URL, looking into the opaque part for
// schemes such as dns:. It returns an empty string when there is no host.
func Host(u *url.URL) string {
	if u == nil {
		return ""
	}

	if u.Opaque != "" {
		host := u.Opaque
		if i := strings.IndexAny(host, "/?"); i >= 0 {
			host = host[:i]
		}
		return host
	}

	return u.Host
}

// SURT returns the scheme-agnostic Sort-friendly URI Reordering Transform of
// a normalized URL: "http://www.example.com:8080/a?b" gives
// "(com,example,www,:8080)/a?b". IP hosts are not reversed.
func SURT(u *url.URL) string {
	if u.Opaque != "" {
		return u.Scheme + ":" + u.Opaque
	}

	var b strings.Builder
	b.Grow(len(u.Host) + len(u.Path) + len(u.RawQuery) + 4)

	host := u.Hostname()
	port := u.Port()

	b.WriteByte('(')
	if net.ParseIP(host) != nil {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		b.WriteString(host)
		if port != "" {
			b.WriteString(":" + port)
		}
	} else {
		labels := strings.Split(host, ".")
		for i := len(labels) - 1; i >= 0; i-- {
			if labels[i] == "" {
				continue
			}
			b.WriteString(labels[i])
			b.WriteByte(',')
		}
		if port != "" {
			b.WriteString(":" + port)
		}
	}
	b.WriteByte(')')

	b.WriteString(u.EscapedPath())
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}

	return b.String()
}

// Canonicalize normalizes the record URL and fills its Identity. When surt is
// false the normalized URL string is used as identity.
func (r *Record) Canonicalize(surt bool) error {
	u, err := Normalize(r.URL)
	if err != nil {
		return err
	}

	r.URL = u.String()
	if surt {
		r.Identity = SURT(u)
	} else {
		r.Identity = r.URL
	}

	return nil
}
