package cmd

import (
	"fmt"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/config"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "frontier",
	Short: "Crawl frontier: politeness-aware URI scheduling with checkpoints",
	Long: `frontier decides which URI a crawl worker fetches next, paces requests per
queue key and durably tracks discovered work so a crawl can be suspended and
resumed from checkpoints.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize config here, after cobra has parsed command line flags
		config.BindFlags(cmd.Flags())

		if err := config.InitConfig(); err != nil {
			return fmt.Errorf("error initializing config: %w", err)
		}

		cfg = config.Get()

		return config.GenerateCrawlConfig()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Run the root command
func Run() error {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceUsage = true

	// Define flags and configuration settings
	rootCmd.PersistentFlags().String("config-file", "", "config file (default is $HOME/frontier-config.yaml)")
	rootCmd.PersistentFlags().String("job", "", "Job name to use, will determine the path for the queues, seencheck database, checkpoints and journal.")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-stdout-log", false, "Do not write logs to stdout.")
	rootCmd.PersistentFlags().Bool("no-log-file", false, "Do not write logs to files in the job directory.")
	rootCmd.PersistentFlags().String("log-es-urls", "", "comma-separated ElasticSearch URLs to use for indexing logs.")
	rootCmd.PersistentFlags().String("log-es-index-prefix", "frontier", "ElasticSearch index prefix to use for indexing logs.")

	addFrontierFlags(rootCmd)

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd.Execute()
}

func addFrontierFlags(cmd *cobra.Command) {
	// Frontier flags
	cmd.PersistentFlags().Int("max-retry", 30, "Number of retries of a URI after retryable failures, negative to disable retries.")
	cmd.PersistentFlags().Bool("retry-at-back", false, "Put retried URIs at the back of their queue instead of the front.")
	cmd.PersistentFlags().Bool("plain-identity", false, "Use the normalized URL instead of its SURT form to detect duplicates.")
	cmd.PersistentFlags().Int64("queue-budget", 0, "Number of fetches after which a queue is retired, 0 for unlimited.")
	cmd.PersistentFlags().Int64("memory-limit", 0, "Number of pending URIs kept in memory across queues before spilling to disk, 0 for unlimited.")
	cmd.PersistentFlags().Bool("no-spill", false, "Keep every pending URI in memory.")
	cmd.PersistentFlags().StringSlice("exclusion-file", []string{}, "File (local or http(s)) of regexes, URIs matching any of them are rejected.")
	cmd.PersistentFlags().String("queue-assignment", "host", "Queue assignment policy: host, surt-authority or bucket.")
	cmd.PersistentFlags().Int("buckets", 1021, "Number of queues of the bucket assignment policy.")
	cmd.PersistentFlags().Int("no-ip-buckets", 16, "Number of buckets used by the bucket policy for hosts without a known IP.")

	// Precedence flags
	cmd.PersistentFlags().String("precedence-policy", "base", "Precedence policy: base, random or preloaded.")
	cmd.PersistentFlags().Int("base-precedence", 1, "Precedence given to non-seed URIs.")
	cmd.PersistentFlags().Int("max-precedence", 0, "Upper bound of the random precedence offset.")
	cmd.PersistentFlags().String("precedence-fallback", "base", "Policy used by the preloaded policy when the history has no entry.")
	cmd.PersistentFlags().String("precedence-field", "precedence", "History field read by the preloaded policy.")
	cmd.PersistentFlags().Int64("precedence-seed", 0, "Seed of the random precedence policy, 0 for a time based seed.")
	cmd.PersistentFlags().String("history-dir", "", "Directory holding the precedence history database (default is the job directory).")

	// Politeness flags
	cmd.PersistentFlags().Float64("delay-factor", 5, "The delay before the next fetch of a queue is this factor times the last fetch duration.")
	cmd.PersistentFlags().Duration("min-delay", 3*time.Second, "Minimum delay between two fetches of a queue.")
	cmd.PersistentFlags().Duration("max-delay", 30*time.Second, "Maximum delay computed from the fetch durations.")
	cmd.PersistentFlags().Duration("respect-crawl-delay-up-to", 300*time.Second, "Highest robots.txt Crawl-delay honoured.")
	cmd.PersistentFlags().Duration("retry-delay", 900*time.Second, "Delay before a queue is retried after a retryable failure.")

	// Checkpoint flags
	cmd.PersistentFlags().String("checkpoint-prefix", "cp", "Prefix of the checkpoint names.")
	cmd.PersistentFlags().String("recover", "latest", "Checkpoint to recover from: latest, none or a checkpoint name.")
	cmd.PersistentFlags().Bool("no-journal", false, "Do not write the recovery journal.")
	cmd.PersistentFlags().Duration("journal-rotation", 6*time.Hour, "Rotation interval of the recovery journal files.")
}
