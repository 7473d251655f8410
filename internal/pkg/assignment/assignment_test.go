package assignment

import (
	"strconv"
	"strings"
	"testing"

	"github.com/internetarchive/frontier/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostPolicy(t *testing.T) {
	p := &HostPolicy{}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain host", "http://a.com/", "a.com"},
		{"upper case", "HTTP://A.COM/x", "a.com"},
		{"default port dropped", "https://a.com:443/", "a.com"},
		{"custom port kept", "http://a.com:8080/", "a.com:8080"},
		{"dns prerequisite", "dns:a.com", "a.com"},
		{"no host", "http:///path", NoHostKey},
		{"garbage", "%%%", NoHostKey},
		{"empty", "", NoHostKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ClassKey(models.NewRecord(tt.in, "", "")))
		})
	}

	assert.Equal(t, NoHostKey, p.ClassKey(nil))
}

func TestSURTAuthorityPolicy(t *testing.T) {
	p := &SURTAuthorityPolicy{}

	assert.Equal(t, "com.example.www", p.ClassKey(models.NewRecord("http://www.example.com/", "", "")))
	assert.Equal(t, "com.example:8080", p.ClassKey(models.NewRecord("http://example.com:8080/", "", "")))
	assert.Equal(t, "127.0.0.1", p.ClassKey(models.NewRecord("http://127.0.0.1/", "", "")))
	assert.Equal(t, NoHostKey, p.ClassKey(models.NewRecord("not a url", "", "")))
}

func TestReverseHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"basic_3_labels", "www.google.com", "com.google.www"},
		{"single_label", "localhost", "localhost"},
		{"trailing_dot", "example.com.", "com.example"},
		{"mixed_case", "Sub.ExAmPlE.CoM", "com.example.sub"},
		{"port_custom", "svc.env.example.org:8443", "org.example.env.svc:8443"},
		{"ipv4_with_port", "127.0.0.1:8080", "127.0.0.1:8080"},
		{"ipv6_bracketed", "[2001:db8::1]:443", "[2001:db8::1]:443"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := reverseHost(tt.in); got != tt.want {
				t.Fatalf("reverseHost(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBucketPolicyRange(t *testing.T) {
	cache := NewHostCache()
	p := NewBucketPolicy(7, 3, cache)

	for i := 0; i < 200; i++ {
		ip := "10.0." + strconv.Itoa(i/256) + "." + strconv.Itoa(i%256)
		key := p.ClassKey(models.NewRecord("http://"+ip+"/", "", ""))

		n, err := strconv.Atoi(key)
		require.NoError(t, err, key)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 7)
	}

	assert.Equal(t, 7+3+1, p.MaxKeys())
}

func TestBucketPolicyNoIP(t *testing.T) {
	cache := NewHostCache()
	p := NewBucketPolicy(5, 4, cache)

	r := models.NewRecord("http://unresolved.example/", "", "")
	key := p.ClassKey(r)
	assert.True(t, strings.HasPrefix(key, "NO-IP-"), key)

	// deterministic
	assert.Equal(t, key, p.ClassKey(r))

	n, err := strconv.Atoi(strings.TrimPrefix(key, "NO-IP-"))
	require.NoError(t, err)
	assert.Less(t, n, 4)

	// once resolved the host joins an IP bucket, shared with the IP itself
	cache.Remember("unresolved.example", "192.0.2.10")
	resolved := p.ClassKey(r)
	assert.Equal(t, p.ClassKey(models.NewRecord("http://192.0.2.10/", "", "")), resolved)

	cache.Forget("unresolved.example")
	assert.Equal(t, key, p.ClassKey(r))
}

func TestBucketPolicySingleBucket(t *testing.T) {
	p := NewBucketPolicy(1, 1, nil)

	assert.Equal(t, "0", p.ClassKey(models.NewRecord("http://192.0.2.1/", "", "")))
	assert.Equal(t, "NO-IP-0", p.ClassKey(models.NewRecord("http://a.com/", "", "")))
	assert.Equal(t, NoHostKey, p.ClassKey(models.NewRecord("", "", "")))
}

func TestNew(t *testing.T) {
	p, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, &HostPolicy{}, p)

	p, err = New(Options{Name: "bucket", Buckets: 3})
	require.NoError(t, err)
	assert.Equal(t, 3+DefaultNoIPBuckets+1, p.MaxKeys())

	_, err = New(Options{Name: "nope"})
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
