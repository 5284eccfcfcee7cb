// Package naive holds the simple engines dabble measures the segmented log
// and the LSM tree against. None of them supports compaction.
package naive

import (
	"path/filepath"
)

// StoreFileName is the single file the file based engines keep their data in.
const StoreFileName = "store"

func storePath(dir string) string {
	return filepath.Join(dir, StoreFileName)
}
