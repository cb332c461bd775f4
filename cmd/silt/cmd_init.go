package main

import (
	"fmt"
	"path/filepath"

	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			r, err := repo.Init(path)
			if err != nil {
				return err
			}

			abs, err := filepath.Abs(r.SiltDir)
			if err != nil {
				abs = r.SiltDir
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty repository in %s\n", abs)
			return nil
		},
	}
}
