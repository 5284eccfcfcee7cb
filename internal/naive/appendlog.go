package naive

import (
	"fmt"
	"io"
	"os"

	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/record"
)

const AppendLogEngineName = "appendlog"

// AppendLog appends every write to a single file and finds values by reading
// the whole file.
type AppendLog struct {
	path string
	file *os.File
}

func OpenAppendLog(dir string) (*AppendLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path := storePath(dir)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &AppendLog{path: path, file: file}, nil
}

// Get returns the last value written for key.
func (s *AppendLog) Get(key string) ([]byte, error) {
	var found []byte
	scanner := record.NewScanner(io.NewSectionReader(s.file, 0, 1<<62), s.path)
	for scanner.Scan() {
		if scanner.Key() == key {
			found = scanner.Value()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if found == nil {
		return nil, kv.ErrNotFound
	}
	return found, nil
}

func (s *AppendLog) Set(key string, value []byte) error {
	if err := record.Validate(key, value); err != nil {
		return err
	}
	if _, err := s.file.Write(record.Encode(key, value)); err != nil {
		return fmt.Errorf("append %s: %w", s.path, err)
	}
	return nil
}

func (s *AppendLog) Close() error {
	return s.file.Close()
}
