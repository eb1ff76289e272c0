package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/somas-io/somas/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show a project's current snapshot",
	Long:  `Display the project's stages, metrics, checkpoints, and recovery info.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectID := args[0]

		snap, err := store.Get(projectID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load %s: %v\n", projectID, err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== %s ===", snap.ProjectID)))
		fmt.Printf("  Issue:    #%d\n", snap.IssueNumber)
		fmt.Printf("  Branch:   %s\n", snap.Branch)
		fmt.Printf("  Status:   %s\n", colorStatus(snap.Status))
		fmt.Printf("  Stage:    %s\n", snap.CurrentStage)
		fmt.Printf("  Updated:  %s\n", snap.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()

		fmt.Printf("%s\n", yellow("Stages:"))
		for _, name := range sortedStageNames(snap) {
			rec := snap.Stages[name]
			line := fmt.Sprintf("  %s %-16s %s", stageIcon(rec.Status), name, rec.Status)
			if rec.Agent != "" {
				line += gray(fmt.Sprintf("  (%s)", rec.Agent))
			}
			if rec.DurationSeconds > 0 {
				line += gray(fmt.Sprintf("  %.1fs", rec.DurationSeconds))
			}
			if rec.RetryCount > 0 {
				line += yellow(fmt.Sprintf("  %d retries", rec.RetryCount))
			}
			fmt.Println(line)
		}
		fmt.Println()

		fmt.Printf("%s\n", yellow("Metrics:"))
		fmt.Printf("  Agent invocations:   %d\n", snap.Metrics.AgentInvocations)
		fmt.Printf("  Artifacts generated: %d\n", snap.Metrics.ArtifactsGenerated)
		fmt.Printf("  Dead letters:        %d\n", snap.Metrics.DeadLetters)
		fmt.Println()

		fmt.Printf("%s\n", yellow("Recovery:"))
		fmt.Printf("  Checkpoints retained: %d\n", len(snap.Checkpoints))
		if snap.RecoveryInfo.LastSuccessfulCheckpoint != "" {
			fmt.Printf("  Last successful:      %s\n", snap.RecoveryInfo.LastSuccessfulCheckpoint)
		} else {
			fmt.Printf("  Last successful:      %s\n", gray("none"))
		}
		fmt.Printf("  Can resume:           %v (from %s)\n", snap.RecoveryInfo.CanResume, snap.RecoveryInfo.ResumeFromStage)
		fmt.Println()
	},
}

// sortedStageNames orders names by stage start time where known, then
// alphabetically, so the default roster reads in roughly pipeline order
// once stages have run.
func sortedStageNames(snap *types.Snapshot) []string {
	names := make([]string, 0, len(snap.Stages))
	for name := range snap.Stages {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := snap.Stages[names[i]], snap.Stages[names[j]]
		switch {
		case a.StartedAt != nil && b.StartedAt != nil && !a.StartedAt.Equal(*b.StartedAt):
			return a.StartedAt.Before(*b.StartedAt)
		case a.StartedAt != nil && b.StartedAt == nil:
			return true
		case a.StartedAt == nil && b.StartedAt != nil:
			return false
		}
		return names[i] < names[j]
	})
	return names
}

func colorStatus(status types.ProjectStatus) string {
	switch status {
	case types.ProjectCompleted:
		return color.New(color.FgGreen).Sprint(string(status))
	case types.ProjectFailed:
		return color.New(color.FgRed).Sprint(string(status))
	case types.ProjectInProgress:
		return color.New(color.FgYellow).Sprint(string(status))
	default:
		return string(status)
	}
}

func stageIcon(status types.StageStatus) string {
	switch status {
	case types.StageCompleted:
		return color.New(color.FgGreen).Sprint("●")
	case types.StageFailed:
		return color.New(color.FgRed).Sprint("✗")
	case types.StageInProgress:
		return color.New(color.FgYellow).Sprint("◐")
	default:
		return color.New(color.FgHiBlack).Sprint("○")
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
