// Package segment implements append-only log files with a dense in-memory
// index, and the consolidation algorithm that merges them.
package segment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/record"
	"golang.org/x/exp/maps"
)

// Segment is one append-only file of records plus an index mapping every key
// to the offset of its latest record in that file.
type Segment struct {
	id   int64
	path string
	file *os.File
	// Offset of the most recent record for each key
	index map[string]int64
	// Number of records ever appended, including overwrites
	length int
	// End of file, where the next record is written
	size int64
}

// Create allocates a new, empty segment file in dir.
func Create(dir string) (*Segment, error) {
	id := NextID()
	path := filepath.Join(dir, FileName(id))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}
	return &Segment{
		id:    id,
		path:  path,
		file:  file,
		index: map[string]int64{},
	}, nil
}

// Open opens the segment at path, creating an empty file if none exists, and
// rebuilds the index by replaying every record.
func Open(path string) (*Segment, error) {
	return open(path, os.O_CREATE|os.O_RDWR|os.O_APPEND)
}

// OpenExisting is like Open but fails with fs.ErrNotExist when the file is
// missing.
func OpenExisting(path string) (*Segment, error) {
	return open(path, os.O_RDWR|os.O_APPEND)
}

func open(path string, flag int) (*Segment, error) {
	id, err := ParseFileName(filepath.Base(path))
	if err != nil {
		// Files outside the segment naming scheme, like the indexed append
		// log, still work as segments. They just do not carry an id.
		id = 0
	}
	ObserveID(id)

	file, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("open segment: %w", err)
	}

	s := &Segment{
		id:    id,
		path:  path,
		file:  file,
		index: map[string]int64{},
	}
	if err := s.reconstruct(); err != nil {
		file.Close()
		return nil, err
	}
	return s, nil
}

func (s *Segment) reconstruct() error {
	scanner := record.NewScanner(io.NewSectionReader(s.file, 0, 1<<62), s.path)
	for scanner.Scan() {
		s.index[scanner.Key()] = scanner.Offset()
		s.length++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	info, err := s.file.Stat()
	if err != nil {
		return err
	}
	s.size = info.Size()
	return nil
}

// Append writes a single record at the end of the segment.
func (s *Segment) Append(key string, value []byte) error {
	return s.AppendBatch([]Record{{Key: key, Value: value}})
}

// Record is a key/value pair handed to AppendBatch.
type Record struct {
	Key   string
	Value []byte
}

// AppendBatch writes all records with a single write call. Later records for
// the same key win.
func (s *Segment) AppendBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	buf := make([]byte, 0, 64*len(records))
	offsets := make([]int64, len(records))
	for i, r := range records {
		offsets[i] = s.size + int64(len(buf))
		buf = record.Append(buf, r.Key, r.Value)
	}

	n, err := s.file.Write(buf)
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("append to %s: %w", s.path, err)
	}

	for i, r := range records {
		s.index[r.Key] = offsets[i]
	}
	s.length += len(records)
	return nil
}

// Get reads the latest value written for key.
func (s *Segment) Get(key string) ([]byte, error) {
	offset, ok := s.index[key]
	if !ok {
		return nil, kv.ErrNotFound
	}

	r := bufio.NewReader(io.NewSectionReader(s.file, offset, s.size-offset))
	line, err := r.ReadBytes(record.Terminator)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s at %d: %w", s.path, offset, err)
	}

	_, value, err := record.Decode(line)
	if err != nil {
		var fe *record.FormatError
		if errors.As(err, &fe) {
			fe.Path = s.path
		}
		return nil, err
	}
	return value, nil
}

// Keys returns the distinct keys in the segment, in no particular order.
func (s *Segment) Keys() []string {
	return maps.Keys(s.index)
}

// Len returns the number of records ever appended, not the number of keys.
func (s *Segment) Len() int {
	return s.length
}

func (s *Segment) NumKeys() int {
	return len(s.index)
}

func (s *Segment) ID() int64 {
	return s.id
}

// Name is the file name, as recorded in the manifest.
func (s *Segment) Name() string {
	return filepath.Base(s.path)
}

func (s *Segment) Path() string {
	return s.path
}

func (s *Segment) String() string {
	return fmt.Sprintf("(%d)<Segment@%s>", len(s.index), s.path)
}

func (s *Segment) Close() error {
	// s.file is nil once closed
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Remove closes the segment and deletes its file.
func (s *Segment) Remove() error {
	return errors.Join(s.Close(), os.Remove(s.path))
}
