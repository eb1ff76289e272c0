package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/somas-io/somas/internal/config"
	"github.com/somas-io/somas/internal/state"
)

// store is shared by all subcommands; built in PersistentPreRun so flags
// are parsed first.
var store *state.Store

var projectsDir string

var rootCmd = &cobra.Command{
	Use:   "somas",
	Short: "Inspect and administer SOMAS pipeline project state",
	Long: `somas reads and administers the durable state files of SOMAS pipeline
projects: the current snapshot, the dead-letter vault, and the
append-only transition log. It is not the pipeline driver; stages are
started and completed by the orchestrating runner.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Load(".")
		if projectsDir != "" {
			cfg.ProjectsDir = projectsDir
		}
		store = state.New(state.Options{
			Root:           cfg.ProjectsDir,
			LockTimeout:    cfg.LockTimeout(),
			MaxCheckpoints: cfg.MaxCheckpoints,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectsDir, "dir", "", "projects directory (default: from .somas/config.yaml or .somas/projects)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
