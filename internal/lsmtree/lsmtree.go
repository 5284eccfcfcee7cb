// Package lsmtree implements the LSM-style engine: a write-ahead logged
// memtable that is flushed to immutable SSTables, with explicit compaction.
package lsmtree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/manifest"
	"github.com/lindend/dabble/internal/record"
	"github.com/lindend/dabble/internal/sstable"

	"github.com/rs/zerolog/log"
)

const EngineName = "lsm"

type LsmTree struct {
	rootDir  string
	options  Options
	manifest *manifest.Manifest
	// Flushed tables in manifest order, oldest first
	tables   []*sstableChunk
	memtable *memtable
}

// Table and memtable ids are UUIDv7, so they sort in creation order.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewLsmTree opens or creates the tree in rootDir. Every table listed in the
// manifest is loaded and the unflushed memtable, if any, is replayed from its
// log before NewLsmTree returns.
func NewLsmTree(rootDir string, options Options) (*LsmTree, error) {
	if options.MaxMemtableSize < 1 {
		return nil, fmt.Errorf("invalid max memtable size %d", options.MaxMemtableSize)
	}
	if options.SparseIndexSize < 1 {
		return nil, fmt.Errorf("invalid sparse index size %d", options.SparseIndexSize)
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	m, err := manifest.Open(filepath.Join(rootDir, manifest.FileName))
	if err != nil {
		return nil, err
	}

	tree := &LsmTree{
		rootDir:  rootDir,
		options:  options,
		manifest: m,
	}

	for _, id := range m.IDs() {
		tbl, err := sstable.LoadSSTable(rootDir, id)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to load table %s: %w", id, err), tree.Close())
		}
		tree.tables = append(tree.tables, &sstableChunk{tbl})
	}

	if err := tree.recoverMemtable(); err != nil {
		return nil, errors.Join(err, tree.Close())
	}

	log.Debug().
		Str("dir", rootDir).
		Int("tables", len(tree.tables)).
		Int64("memtable", tree.memtable.numEntries()).
		Msg("Opened LSM tree")
	return tree, nil
}

// recoverMemtable picks up the log of the memtable that was active when the
// tree was last closed. Logs whose table is already in the manifest were
// flushed but not dropped, and are removed without being replayed.
func (tree *LsmTree) recoverMemtable() error {
	files, err := os.ReadDir(tree.rootDir)
	if err != nil {
		return err
	}

	live := []string{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), walFileExtension) {
			continue
		}
		id := strings.TrimSuffix(f.Name(), walFileExtension)
		if !tree.manifest.Contains(id) {
			live = append(live, id)
			continue
		}

		log.Debug().
			Str("memtable", id).
			Msg("Removing log of flushed memtable")
		if err := os.Remove(walPath(tree.rootDir, id)); err != nil {
			return err
		}
	}

	if len(live) > 1 {
		return &record.FormatError{
			Path:   tree.rootDir,
			Reason: fmt.Sprintf("found %d unflushed write-ahead logs, expected at most one", len(live)),
		}
	}

	id := ""
	if len(live) == 1 {
		id = live[0]
		// A flush that wrote its table but never committed it to the manifest
		if sstable.Exists(tree.rootDir, id) {
			log.Debug().
				Str("table", id).
				Msg("Removing uncommitted table")
			if err := sstable.Remove(tree.rootDir, id); err != nil {
				return err
			}
		}
	} else if id, err = newID(); err != nil {
		return err
	}

	mt, err := openMemtable(tree.rootDir, id)
	if err != nil {
		return err
	}
	tree.memtable = mt
	return nil
}

// Returns the memtable followed by every table, newest first.
func (tree *LsmTree) chunks() []chunk {
	chunks := make([]chunk, 0, len(tree.tables)+1)
	chunks = append(chunks, tree.memtable)
	for i := len(tree.tables) - 1; i >= 0; i-- {
		chunks = append(chunks, tree.tables[i])
	}
	return chunks
}

func (tree *LsmTree) Get(key string) ([]byte, error) {
	for _, c := range tree.chunks() {
		data, err := c.get(key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		return data, err
	}
	return nil, kv.ErrNotFound
}

func (tree *LsmTree) Set(key string, data []byte) error {
	if err := record.Validate(key, data); err != nil {
		return err
	}

	if err := tree.memtable.set(key, data); err != nil {
		return err
	}

	if tree.memtable.numEntries() >= int64(tree.options.MaxMemtableSize) {
		log.Debug().
			Str("memtable", tree.memtable.name()).
			Msg("Memtable full, flushing to SSTable")
		return tree.flush()
	}
	return nil
}

// flush writes the memtable to a new table, records the table in the manifest
// and starts a new memtable.
func (tree *LsmTree) flush() error {
	start := time.Now()

	tbl, err := tree.memtable.flush(tree.options.SparseIndexSize, func(tbl *sstable.SSTable) error {
		return tree.manifest.Add(tbl.Name())
	})
	if tbl == nil {
		return err
	}
	tree.tables = append(tree.tables, &sstableChunk{tbl})

	id, idErr := newID()
	if idErr != nil {
		return errors.Join(err, idErr)
	}
	// If no new memtable can be opened the flushed one stays in place. Its log
	// is closed, so writes fail until the tree is reopened.
	mt, openErr := openMemtable(tree.rootDir, id)
	if openErr != nil {
		return errors.Join(err, openErr)
	}
	tree.memtable = mt

	log.Debug().
		Str("table", tbl.Name()).
		Int64("entries", tbl.NumEntries()).
		Dur("duration", time.Since(start)).
		Msg("Flushed memtable")
	return err
}

// Maintain merges every flushed table into sorted tables of at most
// MaxMemtableSize keys. The memtable is not part of the compaction.
func (tree *LsmTree) Maintain() error {
	start := time.Now()

	// Newest first, so the newest value wins on equal keys
	its := make([]chunkIterator, 0, len(tree.tables))
	for i := len(tree.tables) - 1; i >= 0; i-- {
		it, err := tree.tables[i].iterator()
		if err != nil {
			return err
		}
		its = append(its, it)
	}

	merged, err := tree.compact(newMergeIterator(its))
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}

	names := make([]string, len(merged))
	for i, c := range merged {
		names[i] = c.name()
	}
	if err := tree.manifest.Replace(names); err != nil {
		return errors.Join(err, deleteTables(merged))
	}

	superseded := tree.tables
	tree.tables = merged

	var errs []error
	for _, c := range superseded {
		if tree.options.Reclaim == kv.ReclaimSuperseded {
			errs = append(errs, c.tbl.Delete())
		} else {
			errs = append(errs, c.tbl.Close())
		}
	}

	log.Info().
		Int("before", len(superseded)).
		Int("after", len(merged)).
		Dur("duration", time.Since(start)).
		Msg("Compaction complete")
	return errors.Join(errs...)
}

// compact writes the merged entries to new tables, MaxMemtableSize keys
// each. On failure every table written so far is removed.
func (tree *LsmTree) compact(merge *mergeIterator) ([]*sstableChunk, error) {
	out := []*sstableChunk{}
	batch := make([]entry, 0, tree.options.MaxMemtableSize)

	writeBatch := func() error {
		id, err := newID()
		if err != nil {
			return err
		}
		tbl, err := buildTable(tree.rootDir, id, len(batch), tree.options.SparseIndexSize, newSliceIterator(batch))
		if err != nil {
			return err
		}
		out = append(out, &sstableChunk{tbl})
		batch = batch[:0]
		return nil
	}

	for {
		e, err := merge.next()
		if err != nil {
			return nil, errors.Join(err, deleteTables(out))
		}
		if e == nil {
			break
		}

		batch = append(batch, *e)
		if len(batch) == tree.options.MaxMemtableSize {
			if err := writeBatch(); err != nil {
				return nil, errors.Join(err, deleteTables(out))
			}
		}
	}

	if len(batch) > 0 {
		if err := writeBatch(); err != nil {
			return nil, errors.Join(err, deleteTables(out))
		}
	}
	return out, nil
}

func deleteTables(tables []*sstableChunk) error {
	var errs []error
	for _, c := range tables {
		errs = append(errs, c.tbl.Delete())
	}
	return errors.Join(errs...)
}

func (tree *LsmTree) Stats() kv.Stats {
	stats := kv.Stats{Engine: EngineName}
	for _, c := range tree.tables {
		stats.Structures = append(stats.Structures, kv.StructureStats{
			Name:    c.name(),
			Records: int(c.numEntries()),
			Keys:    int(c.numEntries()),
		})
	}
	stats.Structures = append(stats.Structures, kv.StructureStats{
		Name:    tree.memtable.name(),
		Records: tree.memtable.records,
		Keys:    int(tree.memtable.numEntries()),
		Mutable: true,
	})
	return stats
}

func (tree *LsmTree) Close() error {
	var errs []error
	for _, c := range tree.tables {
		errs = append(errs, c.tbl.Close())
	}
	if tree.memtable != nil {
		errs = append(errs, tree.memtable.close())
	}
	return errors.Join(errs...)
}
