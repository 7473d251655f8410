package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/internetarchive/frontier/internal/pkg/frontier"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Recover the job frontier and print its queues",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("viper config is nil")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := cmd.Flags().GetBool("json")
		if err != nil {
			return err
		}

		j, err := openJob(cfg, jobOptions{NoJournal: true})
		if err != nil {
			return err
		}
		defer j.Close()

		if err := j.recover(); err != nil {
			return err
		}

		if asJSON {
			return writeJSONReport(os.Stdout, j.frontier)
		}

		writeReport(os.Stdout, j.frontier)
		return nil
	},
}

func init() {
	reportCmd.Flags().Bool("json", false, "Print the counts and queue reports as JSON.")
}

func writeReport(w io.Writer, f *frontier.Frontier) {
	fmt.Fprintln(w, f.Summary())
	fmt.Fprintln(w)

	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true

	table.AddRow("QUEUE", "PENDING", "ON DISK", "PRECEDENCE", "WAKE", "STATE", "EMITTED", "BUDGET", "ERRORS")
	for _, report := range f.QueueReports() {
		state := "active"
		switch {
		case report.Retired:
			state = "retired"
		case report.Busy:
			state = "in-process"
		case report.Count == 0:
			state = "empty"
		}

		wake := "-"
		if !report.WakeTime.IsZero() && report.WakeTime.After(time.Now()) {
			wake = humanize.Time(report.WakeTime)
		}

		budget := "unlimited"
		if report.TotalBudget >= 0 {
			budget = fmt.Sprintf("%s/%s", humanize.Comma(report.Expenditure), humanize.Comma(report.TotalBudget))
		}

		table.AddRow(
			report.Key,
			humanize.Comma(report.Count),
			humanize.Comma(report.OnDisk),
			report.Precedence,
			wake,
			state,
			humanize.Comma(report.Emitted),
			budget,
			humanize.Comma(report.Errors),
		)
	}

	fmt.Fprintln(w, table.String())
}

func writeJSONReport(w io.Writer, f *frontier.Frontier) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(map[string]interface{}{
		"summary": f.Summary(),
		"counts":  f.Counts(),
		"queues":  f.QueueReports(),
	})
}
