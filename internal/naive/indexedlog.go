package naive

import (
	"fmt"
	"os"

	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/record"
	"github.com/lindend/dabble/internal/segment"

	"github.com/rs/zerolog/log"
)

const IndexedLogEngineName = "indexedlog"

// IndexedLog is an append log with a dense in-memory index, i.e. a single
// segment that is never rolled over or consolidated.
type IndexedLog struct {
	seg *segment.Segment
}

func OpenIndexedLog(dir string) (*IndexedLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	seg, err := segment.Open(storePath(dir))
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("dir", dir).
		Int("keys", seg.NumKeys()).
		Msg("Opened indexed log")
	return &IndexedLog{seg: seg}, nil
}

func (s *IndexedLog) Get(key string) ([]byte, error) {
	return s.seg.Get(key)
}

func (s *IndexedLog) Set(key string, value []byte) error {
	if err := record.Validate(key, value); err != nil {
		return err
	}
	return s.seg.Append(key, value)
}

func (s *IndexedLog) Stats() kv.Stats {
	return kv.Stats{
		Engine: IndexedLogEngineName,
		Structures: []kv.StructureStats{{
			Name:    StoreFileName,
			Records: s.seg.Len(),
			Keys:    s.seg.NumKeys(),
			Mutable: true,
		}},
	}
}

func (s *IndexedLog) Close() error {
	return s.seg.Close()
}
