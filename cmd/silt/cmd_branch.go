package main

import (
	"fmt"

	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newBranchCmd() *cobra.Command {
	var deleteBranch string

	cmd := &cobra.Command{
		Use:   "branch [name] [start-point]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if deleteBranch != "" {
				if err := r.DeleteBranch(deleteBranch); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted branch '%s'\n", deleteBranch)
				return nil
			}

			if len(args) >= 1 {
				target := "HEAD"
				if len(args) == 2 {
					target = args[1]
				}
				h, err := r.ResolveTarget(target)
				if err != nil {
					return fmt.Errorf("cannot resolve %q: %w", target, err)
				}
				return r.CreateBranch(args[0], h)
			}

			branches, err := r.ListBranches()
			if err != nil {
				return err
			}
			current, _ := r.CurrentBranch()

			out := cmd.OutOrStdout()
			for _, b := range branches {
				if b == current {
					fmt.Fprintf(out, "* %s\n", b)
				} else {
					fmt.Fprintf(out, "  %s\n", b)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")
	return cmd
}
