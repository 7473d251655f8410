package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version number",
	// The version does not need a configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		version, goVersion := getVersion()

		fmt.Println("frontier", version)
		fmt.Println("- go/version:", goVersion)

		if deps, _ := cmd.Flags().GetBool("deps"); deps {
			if info, ok := debug.ReadBuildInfo(); ok {
				for _, dep := range info.Deps {
					fmt.Printf("%s %s (%s)\n", dep.Path, dep.Version, dep.Sum)
				}
			}
		}
	},
}

func init() {
	versionCmd.Flags().Bool("deps", false, "Also print the dependencies.")
}

func getVersion() (version, goVersion string) {
	// Defaults to main
	version = "main"

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			// This returns the current git hash
			if setting.Key == "vcs.revision" {
				version = setting.Value
			}

			// This would show us if the current git tree is modified from the hash
			if setting.Key == "vcs.modified" && setting.Value == "true" {
				version += " (modified)"
			}
		}

		goVersion = info.GoVersion
	}

	return version, goVersion
}
