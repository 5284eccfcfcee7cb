// Package wal implements a write-ahead log of line encoded records.
package wal

import (
	"fmt"
	"os"

	"github.com/lindend/dabble/internal/record"
)

type Entry struct {
	Key   string
	Value []byte
}

type WAL struct {
	file     *os.File
	fileName string
}

// NewWAL opens fileName for appending, creating it if needed. Existing
// entries are kept; read them with LoadWAL first.
func NewWAL(fileName string) (*WAL, error) {
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0660)
	if err != nil {
		return nil, err
	}
	return &WAL{
		file,
		fileName,
	}, nil
}

// Loads a WAL file, oldest entries are first in the array. A missing file
// holds no entries. Replay stops with a format error at the first malformed
// or truncated record.
func LoadWAL(fileName string) ([]Entry, error) {
	file, err := os.Open(fileName)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	defer file.Close()

	entries := make([]Entry, 0)
	scanner := record.NewScanner(file, fileName)
	for scanner.Scan() {
		entries = append(entries, Entry{
			Key:   scanner.Key(),
			Value: scanner.Value(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Write appends a record. It returns once the record is handed to the
// operating system.
func (w *WAL) Write(key string, value []byte) error {
	_, err := w.file.Write(record.Encode(key, value))
	if err != nil {
		return fmt.Errorf("write wal %s: %w", w.fileName, err)
	}
	return nil
}

func (w *WAL) Sync() error {
	return w.file.Sync()
}

func (w *WAL) Close() error {
	return w.file.Close()
}

func (w *WAL) Delete() error {
	w.Close()
	return os.Remove(w.fileName)
}
