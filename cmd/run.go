package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/api"
	"github.com/internetarchive/frontier/internal/pkg/consul"
	"github.com/internetarchive/frontier/internal/pkg/control/watchers"
	"github.com/internetarchive/frontier/internal/pkg/crawl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recover the job frontier and drain it",
	Long: `Recover the job frontier and drain it with a processor that fetches nothing and
reports every URI as a success. Checkpoints are written periodically and when
the run ends.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("viper config is nil")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runJob(ctx, crawl.DryRun{})
	},
}

func init() {
	runCmd.Flags().IntP("workers", "w", 1, "Number of concurrent workers to run.")
	runCmd.Flags().Int("max-hops", 0, "Maximum number of hops to execute.")
	runCmd.Flags().Duration("checkpoint-interval", 0, "Interval between two checkpoints, 0 to only checkpoint when the run ends.")
	runCmd.Flags().String("replay-journal", "", "Directory of recovery journals to replay into the frontier after recovery.")
	runCmd.Flags().Bool("live-stats", false, "Enable live stats but disable logging. (implies --no-stdout-log)")
	runCmd.Flags().Bool("api", false, "Enable API to pause the crawl and administer the queues.")
	runCmd.Flags().Int("api-port", 9443, "Port to listen on for the API.")
	runCmd.Flags().Bool("prometheus", false, "Export metrics in Prometheus format. (implies --api)")
	runCmd.Flags().String("prometheus-prefix", "frontier_", "String used as a prefix for the exported Prometheus metrics.")

	// Consul flags
	runCmd.Flags().Bool("consul-register", false, "Register the API in Consul. (implies --api)")
	runCmd.Flags().String("consul-address", "127.0.0.1", "Consul address.")
	runCmd.Flags().String("consul-port", "8500", "Consul port.")
	runCmd.Flags().String("consul-acl-token", "", "Consul ACL token.")
	runCmd.Flags().StringSlice("consul-register-tags", []string{}, "Tags of the service registered in Consul.")

	// Disk watcher flags
	runCmd.Flags().Bool("disk-watcher", true, "Pause the frontier while the free space of the job directory is low.")
	runCmd.Flags().Float64("min-space-required", 0, "Free space in GB under which the frontier is paused, 0 for a threshold depending on the disk size.")

	// Alias support
	// Aliases values are copied to the proper flag in the config/config.go:handleFlagsAliases() function
	runCmd.Flags().Int("hops", 0, "Maximum number of hops to execute.")
	runCmd.Flags().MarkDeprecated("hops", "use --max-hops instead")
	runCmd.Flags().MarkHidden("hops")
}

func runJob(ctx context.Context, processor crawl.Processor) error {
	var registry *prometheus.Registry
	if cfg.Prometheus {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
	}

	j, err := openJob(cfg, jobOptions{Registry: registry})
	if err != nil {
		return err
	}
	defer j.Close()

	if err := j.recover(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.API {
		server := api.New(apiOptions(j), j.frontier)
		if err := server.Start(); err != nil {
			return fmt.Errorf("start API: %w", err)
		}
		defer server.Stop(5 * time.Second)

		if cfg.ConsulRegister {
			reg, err := consul.Register(ctx, cfg.ConsulOptions(j.log))
			if err != nil {
				return err
			}
			defer func() {
				cancel()
				<-reg.Done()
			}()
		}
	}

	if cfg.DiskWatcher {
		watcher := watchers.NewDiskWatcher(cfg.DiskOptions(j.log), j.frontier)
		watcherDone := make(chan struct{})
		go func() {
			defer close(watcherDone)
			watcher.Run(ctx)
		}()
		defer func() {
			cancel()
			<-watcherDone
		}()
	}

	if cfg.CheckpointInterval > 0 {
		go j.checkpointer.Run(ctx, cfg.CheckpointInterval, j.frontier)
	}

	poolOpts := cfg.PoolOptions()
	poolOpts.PollHint = time.Second
	pool := crawl.NewPool(poolOpts, j.frontier, processor, j.politeness, j.stats, j.log)

	liveStatsDone := make(chan struct{})
	if cfg.LiveStats {
		go func() {
			defer close(liveStatsDone)
			crawl.LiveStats(ctx, os.Stdout, cfg.Job, j.stats, pool, j.frontier.Summary)
		}()
	} else {
		close(liveStatsDone)
	}

	j.log.WithFields(logrus.Fields{
		"workers": poolOpts.Workers,
		"summary": j.frontier.Summary(),
	}).Info("crawl started")

	runErr := pool.Run(ctx)
	cancel()
	<-liveStatsDone

	if runErr != nil {
		j.log.WithField("error", runErr).Error("crawl stopped on a storage error")
	}

	if _, err := j.checkpoint(); err != nil {
		return errors.Join(runErr, err)
	}

	j.log.WithFields(logrus.Fields{
		"counts":  j.frontier.Counts(),
		"summary": j.frontier.Summary(),
	}).Info("crawl finished")

	return runErr
}

func apiOptions(j *job) api.Options {
	version, _ := getVersion()

	opts := api.Options{
		Port:    cfg.APIPort,
		Version: version,
		Stats:   j.stats.GetMap,
		Logger:  j.log.WithField("component", "api"),
	}
	if j.registry != nil {
		opts.Metrics = j.stats.Handler()
	}

	return opts
}
