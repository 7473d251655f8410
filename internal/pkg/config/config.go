package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/internetarchive/frontier/internal/pkg/assignment"
	"github.com/internetarchive/frontier/internal/pkg/checkpoint"
	"github.com/internetarchive/frontier/internal/pkg/consul"
	"github.com/internetarchive/frontier/internal/pkg/control/watchers"
	"github.com/internetarchive/frontier/internal/pkg/crawl"
	"github.com/internetarchive/frontier/internal/pkg/frontier"
	"github.com/internetarchive/frontier/internal/pkg/politeness"
	"github.com/internetarchive/frontier/internal/pkg/precedence"
	"github.com/internetarchive/frontier/internal/pkg/stats"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrUnknownPolicy is returned by GenerateCrawlConfig when a queue
// assignment or precedence policy name is not known
var ErrUnknownPolicy = errors.New("unknown policy")

// Config holds all configuration for our program, parsed from various sources
// The `mapstructure` tags are used to map the fields to the viper configuration
type Config struct {
	Job     string `mapstructure:"job"`
	JobPath string

	// Frontier
	Workers         int      `mapstructure:"workers"`
	MaxHops         int      `mapstructure:"max-hops"`
	MaxRetry        int      `mapstructure:"max-retry"`
	RetryAtBack     bool     `mapstructure:"retry-at-back"`
	PlainIdentity   bool     `mapstructure:"plain-identity"`
	QueueBudget     int64    `mapstructure:"queue-budget"`
	MemoryLimit     int64    `mapstructure:"memory-limit"`
	NoSpill         bool     `mapstructure:"no-spill"`
	ExclusionFile   []string `mapstructure:"exclusion-file"`
	QueueAssignment string   `mapstructure:"queue-assignment"`
	Buckets         int      `mapstructure:"buckets"`
	NoIPBuckets     int      `mapstructure:"no-ip-buckets"`

	// Precedence
	PrecedencePolicy   string `mapstructure:"precedence-policy"`
	BasePrecedence     int    `mapstructure:"base-precedence"`
	MaxPrecedence      int    `mapstructure:"max-precedence"`
	PrecedenceFallback string `mapstructure:"precedence-fallback"`
	PrecedenceField    string `mapstructure:"precedence-field"`
	PrecedenceSeed     int64  `mapstructure:"precedence-seed"`
	HistoryDir         string `mapstructure:"history-dir"`

	// Politeness
	DelayFactor           float64       `mapstructure:"delay-factor"`
	MinDelay              time.Duration `mapstructure:"min-delay"`
	MaxDelay              time.Duration `mapstructure:"max-delay"`
	RespectCrawlDelayUpTo time.Duration `mapstructure:"respect-crawl-delay-up-to"`
	RetryDelay            time.Duration `mapstructure:"retry-delay"`

	// Checkpointing and recovery
	CheckpointInterval time.Duration `mapstructure:"checkpoint-interval"`
	CheckpointPrefix   string        `mapstructure:"checkpoint-prefix"`
	Recover            string        `mapstructure:"recover"`
	NoJournal          bool          `mapstructure:"no-journal"`
	JournalRotation    time.Duration `mapstructure:"journal-rotation"`
	ReplayJournal      string        `mapstructure:"replay-journal"`

	// Logging
	LiveStats                bool   `mapstructure:"live-stats"`
	LogLevel                 string `mapstructure:"log-level"`
	NoStdoutLogging          bool   `mapstructure:"no-stdout-log"`
	NoFileLogging            bool   `mapstructure:"no-log-file"`
	ElasticSearchURLs        string `mapstructure:"log-es-urls"`
	ElasticSearchIndexPrefix string `mapstructure:"log-es-index-prefix"`

	// API and metrics
	API              bool   `mapstructure:"api"`
	APIPort          int    `mapstructure:"api-port"`
	Prometheus       bool   `mapstructure:"prometheus"`
	PrometheusPrefix string `mapstructure:"prometheus-prefix"`

	// Consul
	ConsulAddress      string   `mapstructure:"consul-address"`
	ConsulPort         string   `mapstructure:"consul-port"`
	ConsulACLToken     string   `mapstructure:"consul-acl-token"`
	ConsulRegister     bool     `mapstructure:"consul-register"`
	ConsulRegisterTags []string `mapstructure:"consul-register-tags"`

	// Disk watcher
	DiskWatcher      bool    `mapstructure:"disk-watcher"`
	MinSpaceRequired float64 `mapstructure:"min-space-required"`

	SeedFile         []string         `mapstructure:"seed-file"`
	InputSeeds       []string         // Special field to store the input URLs
	ExclusionRegexes []*regexp.Regexp // Special field to store the compiled exclusion regex (from --exclusion-file)
}

var (
	config *Config
	once   sync.Once
)

// InitConfig initializes the configuration
// Flags -> Env -> Config file
// Latest has precedence over the rest
func InitConfig() error {
	var err error
	once.Do(func() {
		config = &Config{}

		// Check if a config file is provided via flag
		if configFile := viper.GetString("config-file"); configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			home, homeErr := os.UserHomeDir()
			if homeErr != nil {
				err = homeErr
				return
			}

			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName("frontier-config")
		}

		viper.SetEnvPrefix("FRONTIER")
		replacer := strings.NewReplacer("-", "_", ".", "_")
		viper.SetEnvKeyReplacer(replacer)
		viper.AutomaticEnv()

		if readErr := viper.ReadInConfig(); readErr == nil {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}

		// This function is used to bring logic to the flags when needed (e.g. live-stats)
		handleFlagsEdgeCases()

		// This function is used to handle flags aliases (e.g. hops -> max-hops)
		handleFlagsAliases()

		// Unmarshal the config into the Config struct
		err = viper.Unmarshal(config)
	})
	return err
}

// BindFlags binds the flags to the viper configuration
// This is needed because viper doesn't support same flag name accross multiple commands
// Details here: https://github.com/spf13/viper/issues/375#issuecomment-794668149
func BindFlags(flagSet *pflag.FlagSet) {
	flagSet.VisitAll(func(flag *pflag.Flag) {
		viper.BindPFlag(flag.Name, flag)
	})
}

// Get returns the config struct
func Get() *Config {
	return config
}

// GenerateCrawlConfig fills the fields derived from the flags: the job name
// and path, and the compiled exclusions. It also checks the policy names.
func GenerateCrawlConfig() error {
	// If the job name isn't specified, we generate a random name
	if config.Job == "" {
		UUID, err := uuid.NewUUID()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
			}).Error("unable to generate job name")
			return err
		}

		config.Job = UUID.String()
	}

	config.JobPath = path.Join("jobs", config.Job)
	if config.HistoryDir == "" {
		config.HistoryDir = config.JobPath
	}

	if _, err := assignment.New(config.AssignmentOptions()); err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownPolicy, err)
	}

	switch config.PrecedencePolicy {
	case "", "base", "random", "preloaded":
	default:
		return fmt.Errorf("%w: precedence %q", ErrUnknownPolicy, config.PrecedencePolicy)
	}

	config.ExclusionRegexes = nil
	for _, file := range config.ExclusionFile {
		exclusions, err := loadExclusions(file)
		if err != nil {
			return fmt.Errorf("exclusion file %s: %w", file, err)
		}

		config.ExclusionRegexes = append(config.ExclusionRegexes, exclusions...)
	}

	return nil
}

// SpillDir returns where the frontier writes the records over its memory
// limit, or an empty string when spilling is disabled
func (c *Config) SpillDir() string {
	if c.NoSpill {
		return ""
	}
	return path.Join(c.JobPath, "queue")
}

// CheckpointDir returns the directory holding the job checkpoints
func (c *Config) CheckpointDir() string {
	return path.Join(c.JobPath, "checkpoints")
}

// JournalDir returns the directory holding the job recovery journals
func (c *Config) JournalDir() string {
	return path.Join(c.JobPath, "journal")
}

// FrontierOptions converts the configuration for frontier.New
func (c *Config) FrontierOptions() frontier.Options {
	return frontier.Options{
		PlainIdentity: c.PlainIdentity,
		MaxRetries:    c.MaxRetry,
		RetryAtBack:   c.RetryAtBack,
		QueueBudget:   c.QueueBudget,
		MemoryLimit:   c.MemoryLimit,
		SpillDir:      c.SpillDir(),
		Exclusions:    c.ExclusionRegexes,
	}
}

// PolitenessOptions converts the configuration for politeness.New
func (c *Config) PolitenessOptions() politeness.Options {
	return politeness.Options{
		DelayFactor:           c.DelayFactor,
		MinDelay:              c.MinDelay,
		MaxDelay:              c.MaxDelay,
		RespectCrawlDelayUpTo: c.RespectCrawlDelayUpTo,
		RetryDelay:            c.RetryDelay,
	}
}

// AssignmentOptions converts the configuration for assignment.New
func (c *Config) AssignmentOptions() assignment.Options {
	return assignment.Options{
		Name:        c.QueueAssignment,
		Buckets:     c.Buckets,
		NoIPBuckets: c.NoIPBuckets,
	}
}

// PrecedenceOptions converts the configuration for precedence.New
func (c *Config) PrecedenceOptions() precedence.Options {
	return precedence.Options{
		Name:     c.PrecedencePolicy,
		Base:     c.BasePrecedence,
		Max:      c.MaxPrecedence,
		Fallback: c.PrecedenceFallback,
		Field:    c.PrecedenceField,
		Seed:     c.PrecedenceSeed,
	}
}

// CheckpointOptions converts the configuration for checkpoint.New
func (c *Config) CheckpointOptions(logger logrus.FieldLogger) checkpoint.Options {
	return checkpoint.Options{
		Dir:    c.CheckpointDir(),
		Prefix: c.CheckpointPrefix,
		Logger: logger,
	}
}

// StatsOptions converts the configuration for stats.New. Metrics are only
// registered when Prometheus is enabled.
func (c *Config) StatsOptions() stats.Options {
	return stats.Options{
		Prefix: c.PrometheusPrefix,
		Job:    c.Job,
	}
}

// PoolOptions converts the configuration for crawl.NewPool
func (c *Config) PoolOptions() crawl.Options {
	return crawl.Options{
		Workers: c.Workers,
		MaxHops: c.MaxHops,
	}
}

func handleFlagsEdgeCases() {
	if viper.GetBool("live-stats") {
		// If live-stats is true, set no-stdout-log to true
		viper.Set("no-stdout-log", true)
	}

	if viper.GetBool("prometheus") || viper.GetBool("consul-register") {
		// Metrics are served by the API, and Consul registers the API
		viper.Set("api", true)
	}
}

func handleFlagsAliases() {
	// For each flag we want to alias, we check if the original flag is at default and if the alias is not
	// If so, we set the original flag to the value of the alias
	if viper.GetUint("hops") != 0 && viper.GetUint("max-hops") == 0 {
		viper.Set("max-hops", viper.GetUint("hops"))
	}
}

// ConsulOptions converts the configuration for consul.Register
func (c *Config) ConsulOptions(logger logrus.FieldLogger) consul.Options {
	address := c.ConsulAddress
	if c.ConsulPort != "" {
		address += ":" + c.ConsulPort
	}

	return consul.Options{
		Address:  address,
		ACLToken: c.ConsulACLToken,
		Job:      c.Job,
		APIPort:  c.APIPort,
		Tags:     c.ConsulRegisterTags,
		Logger:   logger,
	}
}

// DiskOptions converts the configuration for watchers.NewDiskWatcher
func (c *Config) DiskOptions(logger logrus.FieldLogger) watchers.DiskOptions {
	return watchers.DiskOptions{
		Path:             c.JobPath,
		MinSpaceRequired: c.MinSpaceRequired,
		Logger:           logger,
	}
}
