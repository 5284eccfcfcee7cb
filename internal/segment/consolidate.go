package segment

import (
	"errors"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Consolidate merges segments, ordered oldest first, into new segments holding
// at most maxSegmentSize keys each. Keys are sorted and split into consecutive
// chunks; every key takes the value from the newest input segment holding it.
// The input segments are left untouched. On error, partially written output is
// removed.
func Consolidate(segments []*Segment, maxSegmentSize int, dir string) ([]*Segment, error) {
	if maxSegmentSize < 1 {
		return nil, fmt.Errorf("invalid max segment size %d", maxSegmentSize)
	}

	// Scanning oldest to newest, so the last segment seen for a key owns it
	owners := map[string]*Segment{}
	for _, s := range segments {
		for _, key := range s.Keys() {
			owners[key] = s
		}
	}

	keys := maps.Keys(owners)
	slices.Sort(keys)

	consolidated := make([]*Segment, 0, (len(keys)+maxSegmentSize-1)/maxSegmentSize)
	for len(keys) > 0 {
		n := maxSegmentSize
		if n > len(keys) {
			n = len(keys)
		}
		chunk := keys[:n]
		keys = keys[n:]

		s, err := writeChunk(chunk, owners, dir)
		if err != nil {
			return nil, errors.Join(err, removeAll(consolidated))
		}
		consolidated = append(consolidated, s)
	}

	return consolidated, nil
}

func writeChunk(keys []string, owners map[string]*Segment, dir string) (*Segment, error) {
	records := make([]Record, len(keys))
	for i, key := range keys {
		value, err := owners[key].Get(key)
		if err != nil {
			return nil, err
		}
		records[i] = Record{Key: key, Value: value}
	}

	s, err := Create(dir)
	if err != nil {
		return nil, err
	}
	if err := s.AppendBatch(records); err != nil {
		return nil, errors.Join(err, s.Remove())
	}
	return s, nil
}

func removeAll(segments []*Segment) error {
	var errs []error
	for _, s := range segments {
		errs = append(errs, s.Remove())
	}
	return errors.Join(errs...)
}
