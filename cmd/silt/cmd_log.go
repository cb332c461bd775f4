package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var limit int
	var all bool
	var oneline bool

	cmd := &cobra.Command{
		Use:   "log [ref]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			target := "HEAD"
			if len(args) == 1 {
				target = args[0]
			}
			start, err := r.ResolveTarget(target)
			if err != nil {
				return err
			}

			var entries []repo.LogEntry
			if all {
				entries, err = r.History(start, limit)
			} else {
				entries, err = r.Log(start, limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				if oneline {
					subject := e.Commit.Message
					if i := strings.IndexByte(subject, '\n'); i >= 0 {
						subject = subject[:i]
					}
					fmt.Fprintf(out, "%s %s\n", shortHash(string(e.Hash)), subject)
					continue
				}

				fmt.Fprintf(out, "commit %s\n", e.Hash)
				if len(e.Commit.Parents) > 1 {
					shorts := make([]string, len(e.Commit.Parents))
					for i, p := range e.Commit.Parents {
						shorts[i] = shortHash(string(p))
					}
					fmt.Fprintf(out, "merge: %s\n", strings.Join(shorts, " "))
				}
				fmt.Fprintf(out, "author: %s <%s>\n", e.Commit.Author.Name, e.Commit.Author.Email)
				fmt.Fprintf(out, "date:   %s\n", time.Unix(e.Commit.Author.When, 0).UTC().Format(time.RFC3339))
				if e.Commit.Signature != "" {
					fmt.Fprintln(out, "signed: yes")
				}
				fmt.Fprintln(out)
				for _, line := range strings.Split(strings.TrimRight(e.Commit.Message, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum commits to show (0 = unlimited)")
	cmd.Flags().BoolVar(&all, "all", false, "walk every parent, not just the first")
	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")

	return cmd
}
