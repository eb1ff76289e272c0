package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/somas-io/somas/internal/state"
)

var (
	deadLettersStage       string
	deadLettersAgent       string
	deadLettersUnrecovered bool
)

var deadLettersCmd = &cobra.Command{
	Use:   "deadletters <project-id>",
	Short: "Show a project's dead-letter vault",
	Long:  `List failure records retained for inspection and replay, with running statistics.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectID := args[0]

		entries, err := store.DeadLetters(projectID, state.DeadLetterFilter{
			Stage:           deadLettersStage,
			Agent:           deadLettersAgent,
			UnrecoveredOnly: deadLettersUnrecovered,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read dead letters for %s: %v\n", projectID, err)
			os.Exit(1)
		}

		stats, err := store.DeadLetterStats(projectID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read dead-letter statistics for %s: %v\n", projectID, err)
			os.Exit(1)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("%s %d total, %d unrecovered\n\n", yellow("Dead letters:"), stats.TotalEntries, stats.Unrecovered)

		if len(entries) == 0 {
			fmt.Printf("%s\n", gray("No matching entries"))
			return
		}

		for _, e := range entries {
			marker := gray("recovered")
			if e.Unrecovered() {
				marker = red("unrecovered")
			}
			fmt.Printf("%s  %s\n", gray(e.Timestamp.Format("2006-01-02 15:04:05")), e.ID)
			fmt.Printf("    stage=%s agent=%s attempt=%d %s\n", e.Stage, e.Agent, e.AttemptNumber, marker)
			fmt.Printf("    %s: %s\n", red(e.Error.Type), e.Error.Message)
			if e.ReplayCount > 0 {
				fmt.Printf("    %s\n", gray(fmt.Sprintf("replayed %d times", e.ReplayCount)))
			}
			fmt.Println()
		}
	},
}

func init() {
	deadLettersCmd.Flags().StringVar(&deadLettersStage, "stage", "", "filter by stage")
	deadLettersCmd.Flags().StringVar(&deadLettersAgent, "agent", "", "filter by agent")
	deadLettersCmd.Flags().BoolVar(&deadLettersUnrecovered, "unrecovered", false, "show only entries whose recovery has not succeeded")
	rootCmd.AddCommand(deadLettersCmd)
}
