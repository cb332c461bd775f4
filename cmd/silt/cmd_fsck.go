package main

import (
	"fmt"

	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newFsckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fsck",
		Short: "Verify object graph integrity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			report, err := r.Fsck()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, h := range report.Missing {
				fmt.Fprintf(out, "missing %s\n", h)
			}
			for _, p := range report.Corrupt {
				fmt.Fprintf(out, "corrupt %s: %v\n", p.Hash, p.Err)
			}
			for _, h := range report.Unreachable {
				fmt.Fprintf(out, "unreachable %s\n", h)
			}

			if !report.OK() {
				return fmt.Errorf("fsck found %d missing and %d corrupt object(s)",
					len(report.Missing), len(report.Corrupt))
			}
			fmt.Fprintf(out, "ok: %d object(s) verified, %d unreachable\n",
				report.Checked, len(report.Unreachable))
			return nil
		},
	}
}
