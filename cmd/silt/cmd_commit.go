package main

import (
	"fmt"
	"strings"

	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var message string
	var sign bool
	var signingKey string
	var allowEmpty bool

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record staged changes to the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			opts := repo.CommitOptions{AllowEmpty: allowEmpty}
			if sign {
				signer, keyPath, err := newSSHCommitSigner(signingKey)
				if err != nil {
					return err
				}
				opts.Signer = signer
				fmt.Fprintf(cmd.OutOrStdout(), "signing with %s\n", keyPath)
			}

			h, err := r.Commit(message, opts)
			if err != nil {
				return err
			}

			branch := "HEAD"
			head, err := r.Head()
			if err == nil && strings.HasPrefix(head, "refs/heads/") {
				branch = strings.TrimPrefix(head, "refs/heads/")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, shortHash(string(h)), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "path to the SSH private key (default: ~/.ssh/id_*)")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "allow a commit with no tree changes")

	return cmd
}
