package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	initIssue  int
	initTitle  string
	initBranch string
	initLabels []string
)

var initCmd = &cobra.Command{
	Use:   "init <project-id>",
	Short: "Create state files for a new project",
	Long: `Create a fresh snapshot, empty dead-letter vault, and transition log
for a project. An existing project is overwritten unconditionally.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectID := args[0]

		snap, err := store.Initialize(projectID, initIssue, initTitle, initBranch, initLabels)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize %s: %v\n", projectID, err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Initialized %s\n", green("✓"), snap.ProjectID)
		fmt.Printf("  Issue:   #%d\n", snap.IssueNumber)
		fmt.Printf("  Branch:  %s\n", snap.Branch)
		fmt.Printf("  Stage:   %s\n", snap.CurrentStage)
		fmt.Printf("  Status:  %s\n", snap.Status)
	},
}

func init() {
	initCmd.Flags().IntVar(&initIssue, "issue", 0, "issue number this project tracks")
	initCmd.Flags().StringVar(&initTitle, "title", "", "project title (recorded in the transition log)")
	initCmd.Flags().StringVar(&initBranch, "branch", "", "git branch (default: somas/<project-id>)")
	initCmd.Flags().StringSliceVar(&initLabels, "label", nil, "initial labels (default: somas-project, somas:dev)")
	rootCmd.AddCommand(initCmd)
}
