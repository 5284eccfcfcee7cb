package naive

import (
	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/record"
)

const InMemoryEngineName = "inmemory"

// InMemory keeps everything in a map. Nothing survives Close.
type InMemory struct {
	data map[string][]byte
}

func NewInMemory() *InMemory {
	return &InMemory{data: map[string][]byte{}}
}

func (s *InMemory) Get(key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	res := make([]byte, len(v))
	copy(res, v)
	return res, nil
}

func (s *InMemory) Set(key string, value []byte) error {
	if err := record.Validate(key, value); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored
	return nil
}

func (s *InMemory) Stats() kv.Stats {
	return kv.Stats{
		Engine: InMemoryEngineName,
		Structures: []kv.StructureStats{{
			Name:    "memory",
			Records: len(s.data),
			Keys:    len(s.data),
			Mutable: true,
		}},
	}
}

func (s *InMemory) Close() error {
	s.data = nil
	return nil
}
