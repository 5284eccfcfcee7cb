package naive

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lindend/dabble/internal/fsutil"
	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/record"
)

const JSONFileEngineName = "json"

// JSONFile stores the whole data set as one JSON object with base64 encoded
// values. Every Get reads and every Set rewrites the full file.
type JSONFile struct {
	path string
}

func OpenJSONFile(dir string) (*JSONFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &JSONFile{path: storePath(dir)}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		if err := s.dump(map[string][]byte{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	// Fail on open rather than on the first Get
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONFile) load() (map[string][]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	d := map[string][]byte{}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &record.FormatError{Path: s.path, Reason: err.Error()}
	}
	return d, nil
}

func (s *JSONFile) dump(d map[string][]byte) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, data, 0644)
}

func (s *JSONFile) Get(key string) ([]byte, error) {
	d, err := s.load()
	if err != nil {
		return nil, err
	}
	v, ok := d[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return v, nil
}

func (s *JSONFile) Set(key string, value []byte) error {
	if err := record.Validate(key, value); err != nil {
		return err
	}
	d, err := s.load()
	if err != nil {
		return err
	}
	d[key] = value
	return s.dump(d)
}

func (s *JSONFile) Close() error {
	return nil
}
