package main

import (
	"fmt"
	"io"

	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	var concludeMerge bool
	var abortMerge bool
	var message string

	cmd := &cobra.Command{
		Use:   "merge [branch]",
		Short: "Merge a branch into the current branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if abortMerge {
				if err := r.AbortMerge(); err != nil {
					return err
				}
				fmt.Fprintln(out, "merge aborted")
				return nil
			}

			if concludeMerge {
				h, err := r.ConcludeMerge(message)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "merge concluded: %s\n", shortHash(string(h)))
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("merge requires a branch name (or --continue / --abort)")
			}
			branchName := args[0]

			current, err := r.CurrentBranch()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "merging %s into %s...\n", branchName, current)

			report, err := r.Merge(branchName)
			if err != nil {
				return err
			}

			switch {
			case report.AlreadyUpToDate:
				fmt.Fprintln(out, "already up to date")

			case report.FastForward:
				fmt.Fprintf(out, "fast-forward to %s\n", shortHash(string(report.MergeCommit)))

			case report.HasConflicts:
				for _, f := range report.Files {
					printFileReport(out, f)
				}
				plural := ""
				if report.TotalConflicts != 1 {
					plural = "s"
				}
				fmt.Fprintf(out, "merge stopped with %d conflict%s\n", report.TotalConflicts, plural)
				fmt.Fprintln(out, "fix conflicts, silt add the files, then run silt merge --continue")

			default:
				for _, f := range report.Files {
					printFileReport(out, f)
				}
				fmt.Fprintln(out, "merge completed cleanly")
				fmt.Fprintf(out, "[%s %s] Merge branch '%s'\n", current, shortHash(string(report.MergeCommit)), branchName)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&concludeMerge, "continue", false, "conclude a conflicted merge after resolving")
	cmd.Flags().BoolVar(&abortMerge, "abort", false, "abandon a conflicted merge and restore HEAD")
	cmd.Flags().StringVarP(&message, "message", "m", "", "merge commit message (with --continue)")

	return cmd
}

func printFileReport(out io.Writer, f repo.FileMergeReport) {
	switch f.Status {
	case "conflict":
		plural := ""
		if f.ConflictCount != 1 {
			plural = "s"
		}
		fmt.Fprintf(out, "  %s: CONFLICT (%d conflict%s)\n", f.Path, f.ConflictCount, plural)
	case "added":
		fmt.Fprintf(out, "  %s: added\n", f.Path)
	case "deleted":
		fmt.Fprintf(out, "  %s: deleted\n", f.Path)
	default:
		fmt.Fprintf(out, "  %s: clean\n", f.Path)
	}
}
