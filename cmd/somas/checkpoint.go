package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/somas-io/somas/internal/types"
)

var (
	checkpointStage     string
	checkpointStatus    string
	checkpointArtifacts []string
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint <project-id>",
	Short: "Record a recovery checkpoint manually",
	Long: `Append a checkpoint to the project's retained ring. Stage completion
normally creates checkpoints itself; this command covers manual recovery
points, e.g. before a risky replay.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectID := args[0]

		status := types.CheckpointStatus(checkpointStatus)
		if !status.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: invalid status %q (want success or failed)\n", checkpointStatus)
			os.Exit(1)
		}

		id, err := store.CreateCheckpoint(projectID, checkpointStage, status, checkpointArtifacts, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create checkpoint for %s: %v\n", projectID, err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created checkpoint %s at stage %s\n", green("✓"), id, checkpointStage)
	},
}

func init() {
	checkpointCmd.Flags().StringVar(&checkpointStage, "stage", "", "stage the checkpoint marks (required)")
	checkpointCmd.Flags().StringVar(&checkpointStatus, "status", "success", "checkpoint status (success or failed)")
	checkpointCmd.Flags().StringSliceVar(&checkpointArtifacts, "artifact", nil, "artifact paths at this checkpoint")
	checkpointCmd.MarkFlagRequired("stage")
	rootCmd.AddCommand(checkpointCmd)
}
