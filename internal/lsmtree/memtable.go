package lsmtree

import (
	"errors"
	"path/filepath"

	"github.com/lindend/dabble/internal/collections"
	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/sstable"
	"github.com/lindend/dabble/internal/wal"
)

const walFileExtension = ".wal"

const skiplistLayers = 16

type memtableIterator struct {
	element *collections.SkiplistElement[string, []byte]
}

func (i memtableIterator) next() (chunkIterator, error) {
	next := i.element.Next()
	if next == nil {
		return nil, nil
	}
	return memtableIterator{
		element: next,
	}, nil
}

func (i memtableIterator) value() (string, []byte) {
	k, d := i.element.Value()
	return *k, *d
}

// memtable is the mutable head of the tree: a skip list backed by a
// write-ahead log. Every write reaches the log before the list.
type memtable struct {
	id   string
	dir  string
	list collections.SkipList[string, []byte]
	wal  *wal.WAL
	// Number of writes since the memtable was created, including overwrites
	records int
}

func walPath(dir string, id string) string {
	return filepath.Join(dir, id+walFileExtension)
}

// openMemtable creates the memtable with the given id. If a log for the id
// exists, e.g. after a crash or shut-down before the memtable was flushed to
// an SSTable, its records are replayed oldest first.
func openMemtable(dir string, id string) (*memtable, error) {
	fileName := walPath(dir, id)
	walEntries, err := wal.LoadWAL(fileName)
	if err != nil {
		return nil, err
	}

	w, err := wal.NewWAL(fileName)
	if err != nil {
		return nil, err
	}

	m := &memtable{
		id:   id,
		dir:  dir,
		list: collections.NewSkipList[string, []byte](skiplistLayers),
		wal:  w,
	}

	// Populate existing WAL entries into skiplist
	for _, e := range walEntries {
		m.list.Insert(e.Key, e.Value)
		m.records++
	}

	return m, nil
}

func (m *memtable) name() string {
	return m.id
}

func (m *memtable) get(key string) ([]byte, error) {
	v, exists := m.list.Get(key)
	if !exists || v == nil {
		return nil, kv.ErrNotFound
	}
	return *v, nil
}

func (m *memtable) set(key string, value []byte) error {
	if err := m.wal.Write(key, value); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.list.Insert(key, stored)
	m.records++
	return nil
}

func (m *memtable) iterator() (chunkIterator, error) {
	first := m.list.Iterate()
	if first == nil {
		return nil, nil
	}
	return memtableIterator{
		element: first,
	}, nil
}

func (m *memtable) numEntries() int64 {
	return int64(m.list.Len())
}

// flush writes the memtable to an SSTable named after the memtable and hands
// it to commit. The log is dropped only once commit succeeds; if anything
// fails before that the memtable is left untouched and the table files are
// removed.
func (m *memtable) flush(sparseIndexSize int, commit func(tbl *sstable.SSTable) error) (*sstable.SSTable, error) {
	it, err := m.iterator()
	if err != nil {
		return nil, err
	}
	tbl, err := buildTable(m.dir, m.id, int(m.numEntries()), sparseIndexSize, it)
	if err != nil {
		return nil, err
	}

	if err := commit(tbl); err != nil {
		return nil, errors.Join(err, tbl.Delete())
	}

	m.list.Clear()
	m.records = 0
	if err := m.wal.Delete(); err != nil {
		return tbl, err
	}
	return tbl, nil
}

func (m *memtable) close() error {
	return errors.Join(m.wal.Sync(), m.wal.Close())
}

// buildTable writes n sorted entries from it to a new SSTable.
func buildTable(dir string, name string, n int, sparseIndexSize int, it chunkIterator) (*sstable.SSTable, error) {
	builder, err := sstable.NewSSTable(uint(n), sparseIndexSize, dir, name)
	if err != nil {
		return nil, err
	}

	for it != nil {
		key, value := it.value()
		if err := builder.Write(key, value); err != nil {
			return nil, errors.Join(err, builder.Abort())
		}
		if it, err = it.next(); err != nil {
			return nil, errors.Join(err, builder.Abort())
		}
	}

	tbl, err := builder.Build()
	if err != nil {
		return nil, errors.Join(err, builder.Abort())
	}
	return tbl, nil
}
