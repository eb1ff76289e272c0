package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/somas-io/somas/internal/state"
	"github.com/somas-io/somas/internal/types"
)

var (
	transitionsType  string
	transitionsStage string
	transitionsLimit int
)

var transitionsCmd = &cobra.Command{
	Use:   "transitions <project-id>",
	Short: "Show a project's transition audit log",
	Long: `Print transition records oldest to newest. With --limit, only the most
recent matching records are shown.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectID := args[0]

		records, err := store.Transitions(projectID, state.TransitionFilter{
			EventType: types.EventType(transitionsType),
			Stage:     transitionsStage,
		}, transitionsLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read transitions for %s: %v\n", projectID, err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(records) == 0 {
			fmt.Printf("%s\n", gray("No matching transitions"))
			return
		}

		for _, rec := range records {
			fmt.Println(formatTransition(rec))
		}
	},
}

// formatTransition renders one audit record as a single line.
func formatTransition(rec types.TransitionRecord) string {
	gray := color.New(color.FgHiBlack).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	line := fmt.Sprintf("%s  %s", gray(rec.Timestamp.Format("2006-01-02 15:04:05")), bold(string(rec.EventType)))
	if rec.Stage != "" {
		line += fmt.Sprintf("  stage=%s", rec.Stage)
	}
	if rec.Agent != "" {
		line += fmt.Sprintf("  agent=%s", rec.Agent)
	}
	if rec.FromState != nil && rec.ToState != nil {
		line += gray(fmt.Sprintf("  [%s/%s → %s/%s]",
			rec.FromState.Status, rec.FromState.Stage,
			rec.ToState.Status, rec.ToState.Stage))
	}
	if rec.CheckpointID != "" {
		line += gray(fmt.Sprintf("  checkpoint=%s", rec.CheckpointID))
	}
	if rec.Error != nil {
		line += color.New(color.FgRed).Sprintf("  error=%s: %s", rec.Error.Type, rec.Error.Message)
	}
	return line
}

func init() {
	transitionsCmd.Flags().StringVar(&transitionsType, "type", "", "filter by event type")
	transitionsCmd.Flags().StringVar(&transitionsStage, "stage", "", "filter by stage")
	transitionsCmd.Flags().IntVar(&transitionsLimit, "limit", 0, "show only the most recent N matches")
	rootCmd.AddCommand(transitionsCmd)
}
