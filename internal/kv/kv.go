// Package kv defines the contract every dabble engine implements.
//
// Stores are not safe for concurrent use, and a directory must be owned by a
// single open Store at a time. Opening the same path twice, from one process or
// several, is not supported.
package kv

import "errors"

// ErrNotFound is returned by Get when no reachable structure holds the key.
var ErrNotFound = errors.New("key not found")

type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Close() error
}

// Maintainer is implemented by engines that support explicit compaction.
type Maintainer interface {
	Maintain() error
}

// Inspector is implemented by engines that can describe their on-disk layout.
type Inspector interface {
	Stats() Stats
}

// Stats describes the structures making up a store, oldest first.
type Stats struct {
	Engine     string
	Structures []StructureStats
}

type StructureStats struct {
	Name string
	// Records is the number of records written to the structure, including
	// overwritten ones.
	Records int
	Keys    int
	Mutable bool
}

// Maintain runs compaction on s when the engine supports it and is a no-op
// otherwise.
func Maintain(s Store) error {
	if m, ok := s.(Maintainer); ok {
		return m.Maintain()
	}
	return nil
}

// Reclaim controls what happens to files that compaction supersedes.
type Reclaim int

const (
	// KeepSuperseded leaves superseded files on disk. They are no longer
	// referenced by the manifest.
	KeepSuperseded Reclaim = iota
	// ReclaimSuperseded deletes superseded files once the new manifest is
	// persisted.
	ReclaimSuperseded
)

func (r Reclaim) String() string {
	if r == ReclaimSuperseded {
		return "reclaim"
	}
	return "keep"
}
