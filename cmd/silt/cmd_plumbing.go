package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/siltvcs/silt/pkg/object"
	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newHashObjectCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "hash-object <file>",
		Short: "Compute the blob hash of a file, optionally storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			if write {
				r, err := repo.Open(".")
				if err != nil {
					return err
				}
				h, err := r.Store.WriteBlob(&object.Blob{Data: data})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), h)
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), object.HashObject(object.TypeBlob, data))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "store the blob in the object database")
	return cmd
}

func newCatFileCmd() *cobra.Command {
	var showType bool

	cmd := &cobra.Command{
		Use:   "cat-file <object>",
		Short: "Show the content or type of a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			h, err := r.ResolveTarget(args[0])
			if err != nil {
				// Not a ref; maybe a raw blob/tree hash.
				if !object.ValidHash(args[0]) {
					return err
				}
				h = object.Hash(args[0])
			}

			objType, data, err := r.Store.Read(h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showType {
				fmt.Fprintln(out, objType)
				return nil
			}

			switch objType {
			case object.TypeTree:
				tree, err := object.UnmarshalTree(data)
				if err != nil {
					return err
				}
				printTree(out, tree)
			default:
				out.Write(data)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showType, "type", "t", false, "show the object type instead of its content")
	return cmd
}

func newWriteTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write-tree",
		Short: "Write the current index as a tree object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			stg, err := r.ReadStaging()
			if err != nil {
				return err
			}
			if len(stg.Entries) == 0 {
				return fmt.Errorf("write-tree: index is empty")
			}
			if conflicted := stg.ConflictedPaths(); len(conflicted) > 0 {
				return fmt.Errorf("write-tree: unresolved conflicts in %s", strings.Join(conflicted, ", "))
			}

			h, err := r.BuildTree(stg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func newReadTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-tree <tree>",
		Short: "Replace the index with the contents of a tree object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			treeHash, err := resolveTreeish(r, args[0])
			if err != nil {
				return err
			}

			files, err := r.FlattenTree(treeHash)
			if err != nil {
				return err
			}

			stg := &repo.Staging{Entries: make(map[string]*repo.StagingEntry, len(files))}
			for _, f := range files {
				stg.Entries[f.Path] = &repo.StagingEntry{
					Path:     f.Path,
					BlobHash: f.BlobHash,
					Mode:     f.Mode,
					// No stat cache: the working tree was not touched, so
					// status must rehash these paths.
				}
			}
			return r.WriteStaging(stg)
		},
	}
}

func newLsTreeCmd() *cobra.Command {
	var recurse bool

	cmd := &cobra.Command{
		Use:   "ls-tree <tree>",
		Short: "List the contents of a tree object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			treeHash, err := resolveTreeish(r, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if recurse {
				files, err := r.FlattenTree(treeHash)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintf(out, "%s %s %s\t%s\n", f.Mode, object.TypeBlob, f.BlobHash, f.Path)
				}
				return nil
			}

			tree, err := r.Store.ReadTree(treeHash)
			if err != nil {
				return err
			}
			printTree(out, tree)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recurse, "recurse", "r", false, "recurse into subtrees, listing files with full paths")
	return cmd
}

func newCommitTreeCmd() *cobra.Command {
	var message string
	var parents []string

	cmd := &cobra.Command{
		Use:   "commit-tree <tree>",
		Short: "Create a commit object for an existing tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			parentHashes := make([]object.Hash, 0, len(parents))
			for _, p := range parents {
				h, err := r.ResolveTarget(p)
				if err != nil {
					return fmt.Errorf("cannot resolve parent %q: %w", p, err)
				}
				parentHashes = append(parentHashes, h)
			}

			h, err := r.CommitTree(object.Hash(args[0]), parentHashes, message)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringArrayVarP(&parents, "parent", "p", nil, "parent commit (repeatable)")
	return cmd
}

func newUpdateRefCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-ref <ref> <commit>",
		Short: "Point a ref at a commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			h, err := r.ResolveTarget(args[1])
			if err != nil {
				return err
			}
			return r.UpdateRef(args[0], h)
		},
	}
}

func newMergeBaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge-base <commit> <commit>",
		Short: "Find the best common ancestor of two commits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			a, err := r.ResolveTarget(args[0])
			if err != nil {
				return err
			}
			b, err := r.ResolveTarget(args[1])
			if err != nil {
				return err
			}

			base, err := r.FindMergeBase(a, b)
			if err != nil {
				return err
			}
			if base == "" {
				return fmt.Errorf("no common ancestor between %s and %s", shortHash(string(a)), shortHash(string(b)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), base)
			return nil
		},
	}
}

// resolveTreeish accepts a tree hash, a commit hash, or a ref, and returns
// the tree hash (a commit resolves to its root tree).
func resolveTreeish(r *repo.Repo, arg string) (object.Hash, error) {
	h, err := r.ResolveTarget(arg)
	if err != nil {
		if !object.ValidHash(arg) {
			return "", err
		}
		h = object.Hash(arg)
	}

	if commit, err := r.Store.ReadCommit(h); err == nil {
		return commit.TreeHash, nil
	}
	if _, err := r.Store.ReadTree(h); err == nil {
		return h, nil
	}
	return "", fmt.Errorf("%q is neither a tree nor a commit", arg)
}

func printTree(out io.Writer, tree *object.TreeObj) {
	for _, e := range tree.Entries {
		fmt.Fprintf(out, "%s %s %s\t%s\n", e.Mode, e.Type, e.Hash, e.Name)
	}
}
