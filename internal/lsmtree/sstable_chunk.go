package lsmtree

import (
	"github.com/lindend/dabble/internal/sstable"
)

type sstableChunk struct {
	tbl *sstable.SSTable
}

type sstableChunkIterator struct {
	it *sstable.SSTableIterator
}

func (s *sstableChunk) name() string {
	return s.tbl.Name()
}

func (s *sstableChunk) get(key string) ([]byte, error) {
	return s.tbl.Get(key)
}

func (s *sstableChunk) iterator() (chunkIterator, error) {
	it, err := s.tbl.Iterator()
	if err != nil || it == nil {
		return nil, err
	}
	return &sstableChunkIterator{
		it: it,
	}, nil
}

func (s *sstableChunk) numEntries() int64 {
	return s.tbl.NumEntries()
}

func (s *sstableChunkIterator) value() (string, []byte) {
	return s.it.Value()
}

func (s *sstableChunkIterator) next() (chunkIterator, error) {
	it, err := s.it.Next()
	if err != nil || it == nil {
		return nil, err
	}

	return &sstableChunkIterator{
		it: it,
	}, nil
}
