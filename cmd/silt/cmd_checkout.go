package main

import (
	"fmt"

	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	var createBranch bool

	cmd := &cobra.Command{
		Use:   "checkout <branch|commit>",
		Short: "Switch branches or restore a commit's tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			target := args[0]
			if createBranch {
				head, err := r.ResolveRef("HEAD")
				if err != nil {
					return fmt.Errorf("cannot resolve HEAD: %w", err)
				}
				if err := r.CreateBranch(target, head); err != nil {
					return err
				}
			}

			if err := r.Checkout(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "switched to %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&createBranch, "branch", "b", false, "create the branch before switching")
	return cmd
}
