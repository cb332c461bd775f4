package main

import (
	"fmt"

	"github.com/siltvcs/silt/pkg/object"
	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newVerifyCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-commit <commit>",
		Short: "Verify the SSH signature on a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			h, err := r.ResolveTarget(args[0])
			if err != nil {
				return err
			}
			commit, err := r.Store.ReadCommit(h)
			if err != nil {
				return err
			}
			if commit.Signature == "" {
				return fmt.Errorf("commit %s is not signed", shortHash(string(h)))
			}

			keyType, err := verifySSHCommitSignature(commit.Signature, object.SigningPayload(commit))
			if err != nil {
				return fmt.Errorf("commit %s: %w", shortHash(string(h)), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "good signature on %s (%s)\n", shortHash(string(h)), keyType)
			return nil
		},
	}
}
