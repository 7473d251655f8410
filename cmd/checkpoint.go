package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Manage the job checkpoints",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("viper config is nil")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the job checkpoints, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJob(cfg, jobOptions{NoJournal: true})
		if err != nil {
			return err
		}
		defer j.Close()

		metas, err := j.checkpointer.List()
		if err != nil {
			return err
		}

		table := uitable.New()
		table.MaxColWidth = 80

		table.AddRow("NAME", "CREATED", "VALID", "LINEAGE")
		for _, meta := range metas {
			table.AddRow(meta.Name, humanize.Time(meta.Created), meta.Valid, meta.Lineage)
		}

		fmt.Fprintln(os.Stdout, table.String())
		return nil
	},
}

var checkpointCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Recover the job frontier and write a new checkpoint of it",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJob(cfg, jobOptions{NoJournal: true})
		if err != nil {
			return err
		}
		defer j.Close()

		if err := j.recover(); err != nil {
			return err
		}

		meta, err := j.checkpoint()
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, meta.Name)
		return nil
	},
}

func init() {
	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointCreateCmd)
}
