// Package db opens dabble engines by name and guards data directories against
// being opened twice in one process.
package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lindend/dabble/internal/kv"

	"github.com/rs/zerolog/log"
)

var (
	// ErrInUse is returned when a directory is already open in this process.
	ErrInUse = errors.New("data directory already in use")

	ErrUnknownEngine = errors.New("unknown engine")
)

var (
	openLock  sync.Mutex
	openPaths = map[string]struct{}{}
)

// Collection is an open engine bound to a data directory.
type Collection struct {
	engine string
	path   string
	store  kv.Store
}

// Open opens engine on dir, creating the directory if needed. Recovery runs
// before Open returns.
func Open(engine string, dir string, options Options) (*Collection, error) {
	e, err := Lookup(engine)
	if err != nil {
		return nil, err
	}

	path, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := acquire(path); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		release(path)
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := e.open(path, options)
	if err != nil {
		release(path)
		return nil, err
	}

	log.Debug().
		Str("engine", engine).
		Str("dir", path).
		Msg("Opened collection")

	return &Collection{
		engine: engine,
		path:   path,
		store:  store,
	}, nil
}

func acquire(path string) error {
	openLock.Lock()
	defer openLock.Unlock()

	if _, ok := openPaths[path]; ok {
		return fmt.Errorf("%w: %s", ErrInUse, path)
	}
	openPaths[path] = struct{}{}
	return nil
}

func release(path string) {
	openLock.Lock()
	defer openLock.Unlock()
	delete(openPaths, path)
}

func (c *Collection) Engine() string {
	return c.engine
}

func (c *Collection) Path() string {
	return c.path
}

func (c *Collection) Get(key string) ([]byte, error) {
	return c.store.Get(key)
}

func (c *Collection) Set(key string, value []byte) error {
	return c.store.Set(key, value)
}

// Maintain compacts the collection if the engine supports it.
func (c *Collection) Maintain() error {
	return kv.Maintain(c.store)
}

func (c *Collection) Stats() kv.Stats {
	if i, ok := c.store.(kv.Inspector); ok {
		return i.Stats()
	}
	return kv.Stats{Engine: c.engine}
}

// Close closes the engine and frees the directory for another Open.
func (c *Collection) Close() error {
	defer release(c.path)
	return c.store.Close()
}
