// Package seglog implements the segmented, indexed append log: a list of
// append-only segments tracked by a manifest, with explicit consolidation.
package seglog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/manifest"
	"github.com/lindend/dabble/internal/record"
	"github.com/lindend/dabble/internal/segment"

	"github.com/rs/zerolog/log"
)

const EngineName = "segmented"

// Store is a segmented log. Writes go to the newest segment; reads search
// segments newest first.
type Store struct {
	dir      string
	options  Options
	manifest *manifest.Manifest
	// Open segments in manifest order, oldest first
	segments []*segment.Segment
}

// Open opens or creates the store in dir. All segments listed in the manifest
// are replayed before Open returns. On restart every segment is considered
// complete, whatever its size; the newest one keeps receiving writes until it
// is full.
func Open(dir string, options Options) (*Store, error) {
	if options.MaxSegmentSize < 1 {
		return nil, fmt.Errorf("invalid max segment size %d", options.MaxSegmentSize)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	m, err := manifest.Open(filepath.Join(dir, manifest.FileName))
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:      dir,
		options:  options,
		manifest: m,
	}
	for _, name := range m.IDs() {
		seg, err := segment.OpenExisting(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to load segment %s: %w", name, err), s.Close())
		}
		s.segments = append(s.segments, seg)
	}

	log.Debug().
		Str("dir", dir).
		Int("segments", len(s.segments)).
		Msg("Opened segmented log")
	return s, nil
}

func (s *Store) Get(key string) ([]byte, error) {
	for i := len(s.segments) - 1; i >= 0; i-- {
		value, err := s.segments[i].Get(key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		return value, err
	}
	return nil, kv.ErrNotFound
}

func (s *Store) Set(key string, value []byte) error {
	if err := record.Validate(key, value); err != nil {
		return err
	}

	if len(s.segments) == 0 || s.active().Len() >= s.options.MaxSegmentSize {
		if err := s.addSegment(); err != nil {
			return err
		}
	}
	return s.active().Append(key, value)
}

func (s *Store) active() *segment.Segment {
	return s.segments[len(s.segments)-1]
}

// addSegment creates a new active segment. The segment only becomes part of
// the store once the manifest naming it is persisted.
func (s *Store) addSegment() error {
	seg, err := segment.Create(s.dir)
	if err != nil {
		return err
	}
	if err := s.manifest.Add(seg.Name()); err != nil {
		return errors.Join(err, seg.Remove())
	}
	s.segments = append(s.segments, seg)

	log.Debug().
		Str("segment", seg.Name()).
		Int("segments", len(s.segments)).
		Msg("Rolled over to new segment")
	return nil
}

// Maintain consolidates all segments into sorted segments of at most
// MaxSegmentSize keys.
func (s *Store) Maintain() error {
	start := time.Now()

	consolidated, err := segment.Consolidate(s.segments, s.options.MaxSegmentSize, s.dir)
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}

	names := make([]string, len(consolidated))
	for i, seg := range consolidated {
		names[i] = seg.Name()
	}
	if err := s.manifest.Replace(names); err != nil {
		var errs []error
		for _, seg := range consolidated {
			errs = append(errs, seg.Remove())
		}
		return errors.Join(append([]error{err}, errs...)...)
	}

	superseded := s.segments
	s.segments = consolidated

	var errs []error
	for _, seg := range superseded {
		if s.options.Reclaim == kv.ReclaimSuperseded {
			errs = append(errs, seg.Remove())
		} else {
			errs = append(errs, seg.Close())
		}
	}

	log.Info().
		Int("before", len(superseded)).
		Int("after", len(consolidated)).
		Dur("duration", time.Since(start)).
		Msg("Consolidation complete")
	return errors.Join(errs...)
}

func (s *Store) Stats() kv.Stats {
	stats := kv.Stats{Engine: EngineName}
	for i, seg := range s.segments {
		stats.Structures = append(stats.Structures, kv.StructureStats{
			Name:    seg.Name(),
			Records: seg.Len(),
			Keys:    seg.NumKeys(),
			Mutable: i == len(s.segments)-1,
		})
	}
	return stats
}

func (s *Store) Close() error {
	var errs []error
	for _, seg := range s.segments {
		errs = append(errs, seg.Close())
	}
	return errors.Join(errs...)
}
