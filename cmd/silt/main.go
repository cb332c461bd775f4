package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "silt",
		Short: "Content-addressed version control",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newUnstageCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newBranchCmd())
	root.AddCommand(newTagCmd())
	root.AddCommand(newCheckoutCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newReflogCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newFsckCmd())
	root.AddCommand(newVerifyCommitCmd())

	// Plumbing.
	root.AddCommand(newHashObjectCmd())
	root.AddCommand(newCatFileCmd())
	root.AddCommand(newWriteTreeCmd())
	root.AddCommand(newReadTreeCmd())
	root.AddCommand(newLsTreeCmd())
	root.AddCommand(newCommitTreeCmd())
	root.AddCommand(newUpdateRefCmd())
	root.AddCommand(newMergeBaseCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("silt 0.1.0-dev")
		},
	}
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
