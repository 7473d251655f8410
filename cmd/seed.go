package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/internetarchive/frontier/internal/pkg/frontier"
	"github.com/internetarchive/frontier/internal/pkg/utils"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed [URL...]",
	Short: "Schedule seeds in the job frontier and checkpoint it",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("viper config is nil")
		}
		if len(args) == 0 && len(cfg.SeedFile) == 0 {
			return errors.New("no seed given, use arguments or --seed-file")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJob(cfg, jobOptions{})
		if err != nil {
			return err
		}
		defer j.Close()

		if err := j.recover(); err != nil {
			return err
		}

		seeds := append([]string{}, args...)
		for _, file := range cfg.SeedFile {
			var progress io.Writer
			if !cfg.NoStdoutLogging {
				progress = os.Stdout
			}

			URLs, err := utils.ReadSeedList(j.fs, file, progress)
			if err != nil {
				return fmt.Errorf("seed file %s: %w", file, err)
			}
			seeds = append(seeds, URLs...)
		}

		counts, err := scheduleSeeds(j.frontier, seeds, j.log)
		if err != nil {
			return err
		}

		j.log.WithFields(logrus.Fields{
			"accepted":   counts[frontier.Accepted],
			"duplicates": counts[frontier.Duplicate],
			"rejected":   counts[frontier.Rejected],
		}).Info("seeds scheduled")

		_, err = j.checkpoint()
		return err
	},
}

func init() {
	seedCmd.Flags().StringSlice("seed-file", []string{}, "File of seed URLs, one per line.")
}

// scheduleSeeds schedules every URL as a seed and counts the results
func scheduleSeeds(f *frontier.Frontier, seeds []string, logger logrus.FieldLogger) (map[frontier.Result]int, error) {
	counts := make(map[frontier.Result]int)

	for _, URL := range seeds {
		res, err := f.Schedule(models.NewSeed(URL))
		if err != nil {
			return counts, err
		}
		if res == frontier.Rejected {
			logger.WithField("uri", URL).Warn("seed rejected")
		}
		counts[res]++
	}

	return counts, nil
}
