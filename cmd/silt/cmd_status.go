package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			branch := "main"
			noCommits := true
			head, err := r.Head()
			if err == nil {
				if strings.HasPrefix(head, "refs/heads/") {
					branch = strings.TrimPrefix(head, "refs/heads/")
				} else if !strings.HasPrefix(head, "refs/") && head != "" {
					branch = "detached at " + shortHash(head)
				}
				if _, resolveErr := r.ResolveRef("HEAD"); resolveErr == nil {
					noCommits = false
				}
			}

			if noCommits {
				fmt.Fprintf(out, "on %s (no commits yet)\n", branch)
			} else {
				fmt.Fprintf(out, "on %s\n", branch)
			}

			if _, pending, _ := r.MergeHead(); pending {
				fmt.Fprintln(out, "merge in progress; resolve conflicts and run silt merge --continue")
			}

			var conflicts, staged, unstaged, untracked []string

			for _, e := range entries {
				if e.IndexStatus == repo.StatusConflict || e.WorkStatus == repo.StatusConflict {
					conflicts = append(conflicts, fmt.Sprintf("  ! %s", e.Path))
					continue
				}

				switch e.IndexStatus {
				case repo.StatusNew:
					staged = append(staged, fmt.Sprintf("  + %s", e.Path))
				case repo.StatusModified:
					staged = append(staged, fmt.Sprintf("  ~ %s", e.Path))
				case repo.StatusRenamed:
					staged = append(staged, fmt.Sprintf("  R %s -> %s", e.RenamedFrom, e.Path))
				case repo.StatusDeleted:
					staged = append(staged, fmt.Sprintf("  - %s", e.Path))
				}

				switch e.WorkStatus {
				case repo.StatusDirty:
					unstaged = append(unstaged, fmt.Sprintf("  ~ %s", e.Path))
				case repo.StatusRenamed:
					unstaged = append(unstaged, fmt.Sprintf("  R %s -> %s", e.RenamedFrom, e.Path))
				case repo.StatusDeleted:
					if e.IndexStatus != repo.StatusUntracked {
						unstaged = append(unstaged, fmt.Sprintf("  - %s", e.Path))
					}
				}

				if e.IndexStatus == repo.StatusUntracked && e.WorkStatus != repo.StatusRenamed {
					untracked = append(untracked, fmt.Sprintf("  %s", e.Path))
				}
			}

			printSection(out, "conflicts:", conflicts)
			printSection(out, "staged:", staged)
			printSection(out, "unstaged:", unstaged)
			printSection(out, "untracked:", untracked)
			return nil
		},
	}
}

func printSection(out io.Writer, header string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, header)
	for _, s := range lines {
		fmt.Fprintln(out, s)
	}
}
