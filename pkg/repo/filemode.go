package repo

import (
	"os"

	"github.com/siltvcs/silt/pkg/object"
)

// Filesystem permission bits are normalized to a closed two-value set for
// regular files: executable or not. Everything else about the on-disk mode
// is deliberately not recorded.

func modeFromFileInfo(info os.FileInfo) string {
	if info.Mode()&0o111 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func normalizeFileMode(mode string) string {
	if mode == object.TreeModeExecutable {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func filePermFromMode(mode string) os.FileMode {
	if normalizeFileMode(mode) == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}
