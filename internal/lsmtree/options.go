package lsmtree

import (
	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/sstable"
)

type Options struct {
	// MaxMemtableSize is the number of distinct keys at which the memtable is
	// flushed, and the number of keys per compacted table.
	MaxMemtableSize int
	// SparseIndexSize bounds the number of index markers per table.
	SparseIndexSize int
	Reclaim         kv.Reclaim
}

func DefaultOptions() Options {
	return Options{
		MaxMemtableSize: 100,
		SparseIndexSize: sstable.DefaultSparseIndexSize,
		Reclaim:         kv.KeepSuperseded,
	}
}
