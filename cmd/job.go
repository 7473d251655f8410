package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/internetarchive/frontier/internal/pkg/assignment"
	"github.com/internetarchive/frontier/internal/pkg/checkpoint"
	"github.com/internetarchive/frontier/internal/pkg/config"
	"github.com/internetarchive/frontier/internal/pkg/control"
	"github.com/internetarchive/frontier/internal/pkg/frontier"
	"github.com/internetarchive/frontier/internal/pkg/journal"
	"github.com/internetarchive/frontier/internal/pkg/log"
	"github.com/internetarchive/frontier/internal/pkg/politeness"
	"github.com/internetarchive/frontier/internal/pkg/precedence"
	"github.com/internetarchive/frontier/internal/pkg/seencheck"
	"github.com/internetarchive/frontier/internal/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// job holds every component of a crawl job opened from the configuration
type job struct {
	cfg *config.Config
	fs  afero.Fs

	log          *log.Logger
	stats        *stats.Stats
	registry     *prometheus.Registry
	seen         *seencheck.Seencheck
	history      *precedence.LevelDBHistory
	hosts        *assignment.HostCache
	politeness   *politeness.Policy
	journal      *journal.Journal
	frontier     *frontier.Frontier
	checkpointer *checkpoint.Checkpointer
}

type jobOptions struct {
	// Registry receives the metrics, nothing is registered when nil
	Registry *prometheus.Registry
	// NoJournal overrides the configuration, for read-only commands
	NoJournal bool
	Stdout    io.Writer
}

func openJob(cfg *config.Config, opts jobOptions) (j *job, err error) {
	j = &job{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		registry: opts.Registry,
		hosts:    assignment.NewHostCache(),
	}
	defer func() {
		if err != nil {
			j.Close()
		}
	}()

	j.log, err = log.Setup(log.Options{
		JobPath:                  cfg.JobPath,
		Level:                    cfg.LogLevel,
		NoFile:                   cfg.NoFileLogging,
		NoStdout:                 cfg.NoStdoutLogging,
		Stdout:                   opts.Stdout,
		ElasticSearchURLs:        cfg.ElasticSearchURLs,
		ElasticSearchIndexPrefix: cfg.ElasticSearchIndexPrefix,
	})
	if err != nil {
		return j, fmt.Errorf("setup logging: %w", err)
	}
	logger := j.log.WithField("job", cfg.Job)

	statsOpts := cfg.StatsOptions()
	statsOpts.Registry = opts.Registry
	j.stats, err = stats.New(statsOpts)
	if err != nil {
		return j, err
	}

	if err := os.MkdirAll(cfg.JobPath, os.ModePerm); err != nil {
		return j, fmt.Errorf("create job directory: %w", err)
	}

	j.seen, err = seencheck.New(cfg.JobPath)
	if err != nil {
		return j, err
	}

	assignOpts := cfg.AssignmentOptions()
	assignOpts.Resolver = j.hosts
	assign, err := assignment.New(assignOpts)
	if err != nil {
		return j, err
	}

	if cfg.PrecedencePolicy == "preloaded" {
		j.history, err = precedence.OpenHistory(cfg.HistoryDir)
		if err != nil {
			return j, err
		}
	}

	var history precedence.HistoryStore
	if j.history != nil {
		history = j.history
	}
	prec, err := precedence.New(cfg.PrecedenceOptions(), history, logger)
	if err != nil {
		return j, err
	}

	j.politeness = politeness.New(cfg.PolitenessOptions())

	var frontierJournal frontier.Journal
	if !cfg.NoJournal && !opts.NoJournal {
		j.journal, err = journal.Open(cfg.JournalDir(), cfg.JournalRotation)
		if err != nil {
			return j, err
		}
		frontierJournal = j.journal
	}

	gate := control.NewGate()

	j.frontier, err = frontier.New(cfg.FrontierOptions(), frontier.Deps{
		Seen:       j.seen,
		Assignment: assign,
		Precedence: prec,
		Oracle:     j.politeness,
		Journal:    frontierJournal,
		Stats:      j.stats,
		Gate:       gate,
		Logger:     logger,
	})
	if err != nil {
		return j, err
	}

	ckptOpts := cfg.CheckpointOptions(logger)
	ckptOpts.Fs = j.fs
	j.checkpointer = checkpoint.New(ckptOpts, gate)

	return j, nil
}

// recover restores the frontier as configured by --recover, then replays
// the journals of --replay-journal if any
func (j *job) recover() error {
	switch j.cfg.Recover {
	case "none":
	case "", "latest":
		meta, err := j.checkpointer.Latest()
		if errors.Is(err, checkpoint.ErrNoValidCheckpoint) {
			j.log.Info("no valid checkpoint, starting from an empty frontier")
			break
		}
		if err != nil {
			return err
		}
		if _, err := j.checkpointer.Recover(meta.Name, j.frontier); err != nil {
			return err
		}
	default:
		if _, err := j.checkpointer.Recover(j.cfg.Recover, j.frontier); err != nil {
			return err
		}
	}

	if j.cfg.ReplayJournal == "" {
		return nil
	}

	files, err := journal.Files(j.fs, j.cfg.ReplayJournal)
	if err != nil {
		return err
	}

	_, err = journal.Recover(j.fs, files, j.frontier, j.seen, journal.RecoverOptions{
		PlainIdentity: j.cfg.PlainIdentity,
		Logger:        j.log,
	})

	return err
}

// checkpoint writes a checkpoint of the frontier and logs its summary
func (j *job) checkpoint() (checkpoint.Meta, error) {
	meta, err := j.checkpointer.Checkpoint(j.frontier)
	if err != nil {
		return meta, err
	}

	j.log.WithFields(logrus.Fields{
		"checkpoint": meta.Name,
		"summary":    j.frontier.Summary(),
	}).Info("checkpoint written")

	return meta, nil
}

// Close releases the job components, the frontier before the stores it uses
func (j *job) Close() error {
	var errs []error

	if j.frontier != nil {
		if err := j.frontier.Close(); err != nil && !errors.Is(err, frontier.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if j.journal != nil {
		errs = append(errs, j.journal.Close())
	}
	if j.history != nil {
		errs = append(errs, j.history.Close())
	}
	if j.seen != nil {
		errs = append(errs, j.seen.Close())
	}
	if j.log != nil {
		errs = append(errs, j.log.Close())
	}

	return errors.Join(errs...)
}
