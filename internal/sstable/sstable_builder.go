package sstable

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/lindend/dabble/internal/fsutil"
	"github.com/lindend/dabble/internal/record"
)

const bloomFalsePositiveRate = 0.01

// DefaultSparseIndexSize is the default bound on the number of sparse index markers.
const DefaultSparseIndexSize = 10

// Builder to create new SSTables. Write entries to this and then call .Build() to
// create a new SSTable.
type SSTableBuilder struct {
	// Used to quickly filter queries for elements that definitely does not exist
	// in the table.
	filter *bloom.BloomFilter
	// Handle to the file where records are stored
	data *os.File
	// Buffered writer
	dataWriter *bufio.Writer
	// Position in the data stream where writing of next record begins.
	dataPosition int64
	// Markers pointing at records in the data file, spaced evenly over the
	// sorted keys.
	sparseIndex sparseIndex
	// Positions (in number of records) at which markers are placed. Consumed
	// from the front as records are written.
	markerPositions []int64
	// Flag indicating that the sidecars have been written. With the flag true the
	// SSTable can not accept new writes.
	built bool
	// The last key that was added to the SSTable, used to detect out-of-order writes.
	previousKey *string
	// Root directory of SSTables
	root string
	// Name of this SSTable
	name string
	// Metadata
	meta SSTableMetaData
}

// Creates a new SSTableBuilder. numElements is the number of records that will be
// written; it places the sparse index markers and sizes the bloom filter.
// maxIndexSize bounds the number of markers.
func NewSSTable(numElements uint, maxIndexSize int, root string, name string) (*SSTableBuilder, error) {
	if maxIndexSize < 1 {
		return nil, errors.New("sparse index needs room for at least one marker")
	}

	data, err := os.OpenFile(path.Join(root, name+dataFileExtension), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	filterSize := numElements
	if filterSize == 0 {
		filterSize = 1
	}

	return &SSTableBuilder{
		filter:          bloom.NewWithEstimates(filterSize, bloomFalsePositiveRate),
		data:            data,
		dataWriter:      bufio.NewWriter(data),
		sparseIndex:     sparseIndex{},
		markerPositions: markerPositions(int64(numElements), int64(maxIndexSize)),
		root:            root,
		name:            name,
		meta:            SSTableMetaData{NumEntries: 0},
	}, nil
}

// markerPositions spreads up to maxMarkers positions evenly over n sorted
// records, always including the first and the last record.
func markerPositions(n int64, maxMarkers int64) []int64 {
	m := n
	if m > maxMarkers {
		m = maxMarkers
	}
	if m <= 0 {
		return nil
	}
	if m == 1 {
		return []int64{0}
	}

	positions := make([]int64, m)
	for j := int64(0); j < m; j++ {
		positions[j] = j * (n - 1) / (m - 1)
	}
	return positions
}

func (s *SSTableBuilder) saveBloomFilter() error {
	var buf bytes.Buffer
	if _, err := s.filter.WriteTo(&buf); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path.Join(s.root, s.name+bloomFilterFileExtension), buf.Bytes(), 0644)
}

func (s *SSTableBuilder) saveSparseIndex() error {
	data, err := json.Marshal(s.sparseIndex)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path.Join(s.root, s.name+sparseIndexFileExtension), data, 0644)
}

func (s *SSTableBuilder) saveMetadata() error {
	data, err := json.Marshal(s.meta)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path.Join(s.root, s.name+metadataFileExtension), data, 0644)
}

// Writes a new record to the SSTable. Keys must be added in strictly ascending
// order. The table cannot have been built.
func (s *SSTableBuilder) Write(key string, value []byte) error {
	if s.built {
		return errors.New("cannot write to a built SSTable, data structure is immutable")
	}
	if err := record.Validate(key, value); err != nil {
		return err
	}

	if s.previousKey != nil && *s.previousKey >= key {
		return errors.New("must add keys in ascending order to SSTable")
	}
	s.previousKey = &key

	if len(s.markerPositions) > 0 && s.markerPositions[0] == s.meta.NumEntries {
		s.sparseIndex = append(s.sparseIndex, indexEntry{
			Key:    key,
			Offset: s.dataPosition,
		})
		s.markerPositions = s.markerPositions[1:]
	}

	line := record.Encode(key, value)
	n, err := s.dataWriter.Write(line)
	if err != nil {
		return err
	}
	s.dataPosition += int64(n)

	s.filter.AddString(key)
	s.meta.NumEntries += 1

	return nil
}

// Saves everything to disk and returns a new SSTable ready for reading. The
// data file and every sidecar are synced before Build returns.
func (s *SSTableBuilder) Build() (*SSTable, error) {
	if s.built {
		return nil, errors.New("sstable already built")
	}

	if err := s.dataWriter.Flush(); err != nil {
		return nil, err
	}
	if err := s.data.Sync(); err != nil {
		return nil, err
	}
	if err := s.data.Close(); err != nil {
		return nil, err
	}

	if err := s.saveBloomFilter(); err != nil {
		return nil, err
	}

	if err := s.saveSparseIndex(); err != nil {
		return nil, err
	}

	if err := s.saveMetadata(); err != nil {
		return nil, err
	}

	s.built = true

	return LoadSSTable(s.root, s.name)
}

// Abort discards a table that will not be built.
func (s *SSTableBuilder) Abort() error {
	s.data.Close()
	return Remove(s.root, s.name)
}
