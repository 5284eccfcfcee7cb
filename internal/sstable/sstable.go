// Package sstable implements immutable sorted string tables: a sorted data
// file of line records plus sidecars holding a bounded sparse index, a bloom
// filter and metadata.
package sstable

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/record"
	"golang.org/x/exp/mmap"
)

const dataFileExtension = ".sst"
const metadataFileExtension = ".meta"
const bloomFilterFileExtension = ".bloom"
const sparseIndexFileExtension = ".spindex"

type indexEntry struct {
	Key    string `json:"k"`
	Offset int64  `json:"o"`
}

type SSTableMetaData struct {
	NumEntries int64
}

type sparseIndex []indexEntry

// Immutable data structure used for quick key-value lookups from disk.
type SSTable struct {
	// Used to quickly filter queries for elements that definitely does not exist
	// in the table.
	filter *bloom.BloomFilter
	// Handle to the file where records are stored, sorted by key
	data *mmap.ReaderAt
	// In-memory markers pointing at records in the data file
	sparseIndex sparseIndex
	// Root directory of SSTables
	root string
	// Name of this SSTable
	name string
	// Metadata
	meta SSTableMetaData
}

func sidecarError(p string, reason string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		reason = "missing " + reason
	} else {
		reason = fmt.Sprintf("unreadable %s: %v", reason, err)
	}
	return &record.FormatError{Path: p, Reason: reason}
}

func loadBloomFilter(root string, name string) (*bloom.BloomFilter, error) {
	p := path.Join(root, name+bloomFilterFileExtension)
	file, err := os.Open(p)
	if err != nil {
		return nil, sidecarError(p, "bloom filter", err)
	}
	defer file.Close()

	bloomFilter := bloom.BloomFilter{}
	if _, err := bloomFilter.ReadFrom(file); err != nil {
		return nil, sidecarError(p, "bloom filter", err)
	}

	return &bloomFilter, nil
}

func loadSparseIndex(root string, name string) (sparseIndex, error) {
	p := path.Join(root, name+sparseIndexFileExtension)
	file, err := os.Open(p)
	if err != nil {
		return nil, sidecarError(p, "sparse index", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	idx := sparseIndex{}
	err = decoder.Decode(&idx)
	if err != nil {
		return nil, sidecarError(p, "sparse index", err)
	}

	if !sort.SliceIsSorted(idx, func(i, j int) bool { return idx[i].Key < idx[j].Key }) {
		return nil, &record.FormatError{Path: p, Reason: "sparse index is not sorted"}
	}

	return idx, nil
}

func loadMetadata(root string, name string) (*SSTableMetaData, error) {
	p := path.Join(root, name+metadataFileExtension)
	file, err := os.Open(p)
	if err != nil {
		return nil, sidecarError(p, "metadata", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	m := SSTableMetaData{}
	err = decoder.Decode(&m)
	if err != nil {
		return nil, sidecarError(p, "metadata", err)
	}

	return &m, nil
}

// Loads an SSTable from disk. An SSTable is stored in a few different files:
// .sst - the records of the SSTable, sorted by key
// .bloom - a bloom filter used to quickly reject items not in this SSTable
// .spindex - the sparse index, which is loaded into memory. Used to
//
//	find where in the data file to start scanning for a key.
//
// .meta - the number of records
func LoadSSTable(root string, name string) (*SSTable, error) {
	bloomFilter, err := loadBloomFilter(root, name)
	if err != nil {
		return nil, err
	}

	sparseIndex, err := loadSparseIndex(root, name)
	if err != nil {
		return nil, err
	}

	metadata, err := loadMetadata(root, name)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Open(path.Join(root, name+dataFileExtension))
	if err != nil {
		return nil, fmt.Errorf("open sstable %s: %w", name, err)
	}

	for _, marker := range sparseIndex {
		if marker.Offset < 0 || marker.Offset >= int64(data.Len()) {
			data.Close()
			return nil, &record.FormatError{
				Path:   path.Join(root, name+sparseIndexFileExtension),
				Reason: fmt.Sprintf("marker %q points outside the data file", marker.Key),
			}
		}
	}

	sstable := &SSTable{
		filter:      bloomFilter,
		data:        data,
		sparseIndex: sparseIndex,
		meta:        *metadata,
		root:        root,
		name:        name,
	}

	return sstable, nil
}

// Finds the offset of the nearest marker whose key is at or before key.
func (s *SSTable) seek(key string) (int64, bool) {
	i := sort.Search(len(s.sparseIndex), func(i int) bool {
		return s.sparseIndex[i].Key > key
	})
	if i == 0 {
		return 0, false
	}
	return s.sparseIndex[i-1].Offset, true
}

// Reads the record starting at offset. Returns the record and the offset of
// the one after it.
func (s *SSTable) readRecord(offset int64) (string, []byte, int64, error) {
	end := offset
	size := int64(s.data.Len())
	for end < size && s.data.At(int(end)) != record.Terminator {
		end++
	}
	if end == size {
		return "", nil, 0, &record.FormatError{
			Path:   s.dataPath(),
			Reason: fmt.Sprintf("truncated record at offset %d", offset),
		}
	}

	line := make([]byte, end-offset)
	if _, err := s.data.ReadAt(line, offset); err != nil {
		return "", nil, 0, err
	}
	key, value, err := record.Decode(line)
	if err != nil {
		var formatErr *record.FormatError
		if errors.As(err, &formatErr) {
			formatErr.Path = s.dataPath()
		}
		return "", nil, 0, err
	}
	return key, value, end + 1, nil
}

// Scans forward from the nearest marker until key or a greater key is found.
// Returns the number of records read along the way.
func (s *SSTable) lookup(key string) ([]byte, int, error) {
	offset, ok := s.seek(key)
	if !ok {
		return nil, 0, kv.ErrNotFound
	}

	scanned := 0
	size := int64(s.data.Len())
	for offset < size {
		k, value, next, err := s.readRecord(offset)
		if err != nil {
			return nil, scanned, err
		}
		scanned++
		if k == key {
			return value, scanned, nil
		}
		if k > key {
			break
		}
		offset = next
	}
	return nil, scanned, kv.ErrNotFound
}

func (s *SSTable) Get(key string) ([]byte, error) {
	if !s.filter.TestString(key) {
		return nil, kv.ErrNotFound
	}

	value, _, err := s.lookup(key)
	return value, err
}

func (s *SSTable) Name() string {
	return s.name
}

func (s *SSTable) dataPath() string {
	return path.Join(s.root, s.name+dataFileExtension)
}

func (s *SSTable) Close() error {
	return s.data.Close()
}

func (s *SSTable) NumEntries() int64 {
	return s.meta.NumEntries
}

// Iterator returns the first record of the table, or nil for an empty table.
func (s *SSTable) Iterator() (*SSTableIterator, error) {
	it := SSTableIterator{
		tbl:        s,
		nextOffset: 0,
	}
	return it.Next()
}

// Delete closes the table and removes all of its files.
func (s *SSTable) Delete() error {
	return errors.Join(s.data.Close(), Remove(s.root, s.name))
}

// Remove deletes every file of the named table that exists.
func Remove(root string, name string) error {
	var errs []error
	for _, ext := range []string{
		dataFileExtension,
		bloomFilterFileExtension,
		sparseIndexFileExtension,
		metadataFileExtension,
	} {
		err := os.Remove(path.Join(root, name+ext))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Exists reports whether the data file of the named table is present.
func Exists(root string, name string) bool {
	_, err := os.Stat(path.Join(root, name+dataFileExtension))
	return err == nil
}
