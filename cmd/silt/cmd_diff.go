package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/siltvcs/silt/pkg/diff"
	"github.com/siltvcs/silt/pkg/object"
	"github.com/siltvcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var staged bool

	cmd := &cobra.Command{
		Use:   "diff [paths...]",
		Short: "Show changes between working tree, index, and HEAD",
		Long: `Without flags, shows unstaged changes (working tree vs index).
With --staged, shows staged changes (index vs HEAD).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			filter := make(map[string]bool, len(args))
			for _, a := range args {
				filter[filepath.ToSlash(filepath.Clean(a))] = true
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}

			stg, err := r.ReadStaging()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				if len(filter) > 0 && !filter[e.Path] {
					continue
				}

				var before, after []byte
				if staged {
					if e.IndexStatus == repo.StatusClean || e.IndexStatus == repo.StatusUntracked {
						continue
					}
					before, after, err = stagedDiffContents(r, stg, e.Path)
				} else {
					if e.WorkStatus == repo.StatusClean || e.WorkStatus == repo.StatusUntracked {
						continue
					}
					before, after, err = worktreeDiffContents(r, stg, e.Path)
				}
				if err != nil {
					return err
				}

				if fd := diff.DiffFiles(e.Path, before, after); fd != nil {
					fmt.Fprint(out, diff.Format(fd))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&staged, "staged", false, "compare the index against HEAD instead of the working tree against the index")
	return cmd
}

// stagedDiffContents returns (HEAD content, index content) for a path.
func stagedDiffContents(r *repo.Repo, stg *repo.Staging, path string) ([]byte, []byte, error) {
	var before, after []byte

	if headHash, err := r.ResolveRef("HEAD"); err == nil {
		if commit, err := r.Store.ReadCommit(headHash); err == nil {
			if files, err := r.FlattenTree(commit.TreeHash); err == nil {
				for _, f := range files {
					if f.Path == path {
						blob, err := r.Store.ReadBlob(f.BlobHash)
						if err != nil {
							return nil, nil, err
						}
						before = blob.Data
						break
					}
				}
			}
		}
	}

	if se, ok := stg.Entries[path]; ok {
		blob, err := r.Store.ReadBlob(se.BlobHash)
		if err != nil {
			return nil, nil, err
		}
		after = blob.Data
	}
	return before, after, nil
}

// worktreeDiffContents returns (index content, working tree content) for
// a path.
func worktreeDiffContents(r *repo.Repo, stg *repo.Staging, path string) ([]byte, []byte, error) {
	var before, after []byte

	if se, ok := stg.Entries[path]; ok {
		var blobHash object.Hash
		if se.Conflict && se.OursBlobHash != "" {
			blobHash = se.OursBlobHash
		} else {
			blobHash = se.BlobHash
		}
		blob, err := r.Store.ReadBlob(blobHash)
		if err != nil {
			return nil, nil, err
		}
		before = blob.Data
	}

	data, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(path)))
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, err
	}
	after = data
	return before, after, nil
}
