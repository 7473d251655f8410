package config

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/assignment"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_Flags(t *testing.T) {
	t.Setenv("FRONTIER_MAX_RETRY", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	flags.Bool("live-stats", false, "")
	flags.Duration("min-delay", 3*time.Second, "")
	flags.Bool("prometheus", false, "")
	flags.String("config-file", filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, flags.Parse([]string{"--workers=12", "--live-stats", "--min-delay=1s", "--prometheus"}))

	BindFlags(flags)
	viper.SetDefault("max-retry", 30)

	require.NoError(t, InitConfig())
	c := Get()

	assert.Equal(t, 12, c.Workers)
	assert.Equal(t, 7, c.MaxRetry)
	assert.Equal(t, time.Second, c.MinDelay)
	assert.True(t, c.LiveStats)
	assert.True(t, c.NoStdoutLogging)
	assert.True(t, c.API)
}

func TestGenerateCrawlConfig(t *testing.T) {
	dir := t.TempDir()
	exclusionFile := filepath.Join(dir, "exclusions.txt")
	require.NoError(t, os.WriteFile(exclusionFile, []byte("# comment\n\n^https?://excluded\\.com/\n.*\\.pdf$\n"), 0644))

	config = &Config{ExclusionFile: []string{exclusionFile}}
	require.NoError(t, GenerateCrawlConfig())

	assert.NotEmpty(t, config.Job)
	assert.Equal(t, filepath.Join("jobs", config.Job), config.JobPath)
	require.Len(t, config.ExclusionRegexes, 2)
	assert.True(t, config.ExclusionRegexes[0].MatchString("http://excluded.com/a"))
	assert.True(t, config.ExclusionRegexes[1].MatchString("http://example.com/doc.pdf"))

	opts := config.FrontierOptions()
	assert.Len(t, opts.Exclusions, 2)
	assert.Equal(t, filepath.Join(config.JobPath, "queue"), opts.SpillDir)
}

func TestGenerateCrawlConfigRemoteExclusions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exclusions" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintln(w, "^http://a\\.com/")
	}))
	defer server.Close()

	config = &Config{Job: "remote", ExclusionFile: []string{server.URL + "/exclusions"}}
	require.NoError(t, GenerateCrawlConfig())
	require.Len(t, config.ExclusionRegexes, 1)

	config = &Config{Job: "remote", ExclusionFile: []string{server.URL + "/missing"}}
	assert.Error(t, GenerateCrawlConfig())
}

func TestGenerateCrawlConfigErrors(t *testing.T) {
	dir := t.TempDir()
	badFile := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(badFile, []byte("(unclosed\n"), 0644))

	tests := []struct {
		name   string
		config Config
		err    error
	}{
		{"unknown assignment", Config{Job: "j", QueueAssignment: "nope"}, assignment.ErrUnknownPolicy},
		{"unknown precedence", Config{Job: "j", PrecedencePolicy: "nope"}, ErrUnknownPolicy},
		{"bad regex", Config{Job: "j", ExclusionFile: []string{badFile}}, nil},
		{"missing file", Config{Job: "j", ExclusionFile: []string{filepath.Join(dir, "missing")}}, os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.config
			config = &c

			err := GenerateCrawlConfig()
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestOptionConversions(t *testing.T) {
	c := &Config{
		JobPath:          "jobs/x",
		NoSpill:          true,
		MinDelay:         time.Second,
		QueueAssignment:  "bucket",
		Buckets:          17,
		PrecedencePolicy: "random",
		MaxPrecedence:    4,
		Workers:          3,
		MaxHops:          2,
		CheckpointPrefix: "job",
	}

	assert.Empty(t, c.FrontierOptions().SpillDir)
	assert.Equal(t, time.Second, c.PolitenessOptions().MinDelay)
	assert.Equal(t, 17, c.AssignmentOptions().Buckets)
	assert.Equal(t, 4, c.PrecedenceOptions().Max)
	assert.Equal(t, 3, c.PoolOptions().Workers)
	assert.Equal(t, "jobs/x/checkpoints", c.CheckpointOptions(nil).Dir)
	assert.Equal(t, "job", c.CheckpointOptions(nil).Prefix)
	assert.Equal(t, "jobs/x/journal", c.JournalDir())
}

func TestServiceOptions(t *testing.T) {
	c := &Config{
		Job:                "x",
		JobPath:            "jobs/x",
		APIPort:            9443,
		ConsulAddress:      "consul.example",
		ConsulPort:         "8500",
		ConsulRegisterTags: []string{"crawl"},
		MinSpaceRequired:   20,
	}

	consulOpts := c.ConsulOptions(nil)
	assert.Equal(t, "consul.example:8500", consulOpts.Address)
	assert.Equal(t, 9443, consulOpts.APIPort)
	assert.Equal(t, "x", consulOpts.Job)
	assert.Equal(t, []string{"crawl"}, consulOpts.Tags)

	diskOpts := c.DiskOptions(nil)
	assert.Equal(t, "jobs/x", diskOpts.Path)
	assert.Equal(t, float64(20), diskOpts.MinSpaceRequired)
}
