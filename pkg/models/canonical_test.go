package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{"lower-cases scheme and host", "HTTP://WWW.Example.COM/Path", "http://www.example.com/Path", nil},
		{"drops default port", "https://example.com:443/a", "https://example.com/a", nil},
		{"keeps other ports", "http://example.com:8080/a", "http://example.com:8080/a", nil},
		{"drops fragment", "http://example.com/a#section", "http://example.com/a", nil},
		{"adds root path", "http://example.com", "http://example.com/", nil},
		{"encodes unicode host", "http://bücher.de/", "http://xn--bcher-kva.de/", nil},
		{"trims trailing dot", "http://example.com./", "http://example.com/", nil},
		{"keeps dns prerequisites", "dns:Example.com", "dns:example.com", nil},
		{"rejects empty", "  ", "", ErrEmptyURL},
		{"rejects scheme-less", "example.com/a", "", ErrMissingScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Normalize(tt.input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, u.String())
		})
	}
}

func TestSURT(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://www.example.com/", "(com,example,www,)/"},
		{"https://www.example.com/", "(com,example,www,)/"},
		{"http://www.example.com:8080/a/b?c=d", "(com,example,www,:8080)/a/b?c=d"},
		{"http://192.168.1.1/index.html", "(192.168.1.1)/index.html"},
		{"http://[::1]:8080/", "([::1]:8080)/"},
		{"dns:example.com", "dns:example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			u, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, SURT(u))
		})
	}
}

func TestRecordCanonicalize(t *testing.T) {
	r := NewRecord("HTTP://Example.com", "http://example.org/", "L")

	require.NoError(t, r.Canonicalize(true))
	assert.Equal(t, "http://example.com/", r.URL)
	assert.Equal(t, "(com,example,)/", r.Identity)
	assert.Equal(t, StatePending, r.State)
	assert.Equal(t, 1, r.Hops())

	require.NoError(t, r.Canonicalize(false))
	assert.Equal(t, "http://example.com/", r.Identity)
}

func TestHost(t *testing.T) {
	u, err := Normalize("dns:example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", Host(u))

	u, err = Normalize("http://example.com:8080/x")
	require.NoError(t, err)
	assert.Equal(t, "example.com:8080", Host(u))

	assert.Equal(t, "", Host(nil))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "in-progress", StateInProgress.String())
	assert.Equal(t, "failed-terminal", StateFailedTerminal.String())
	assert.Equal(t, "disregarded", OutcomeDisregarded.String())
}
