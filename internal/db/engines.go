package db

import (
	"fmt"

	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/lsmtree"
	"github.com/lindend/dabble/internal/naive"
	"github.com/lindend/dabble/internal/seglog"
)

// Options is the union of the tunables of every engine. Each engine reads the
// fields it understands.
type Options struct {
	MaxSegmentSize  int
	MaxMemtableSize int
	SparseIndexSize int
	Reclaim         kv.Reclaim
}

func DefaultOptions() Options {
	segmented := seglog.DefaultOptions()
	lsm := lsmtree.DefaultOptions()
	return Options{
		MaxSegmentSize:  segmented.MaxSegmentSize,
		MaxMemtableSize: lsm.MaxMemtableSize,
		SparseIndexSize: lsm.SparseIndexSize,
		Reclaim:         kv.KeepSuperseded,
	}
}

type Engine struct {
	Name string
	// Persistent engines keep their data across Close and Open.
	Persistent bool
	open       func(dir string, options Options) (kv.Store, error)
}

// Engines lists every engine, simplest first.
var Engines = []Engine{
	{
		Name:       naive.InMemoryEngineName,
		Persistent: false,
		open: func(string, Options) (kv.Store, error) {
			return naive.NewInMemory(), nil
		},
	},
	{
		Name:       naive.JSONFileEngineName,
		Persistent: true,
		open: func(dir string, _ Options) (kv.Store, error) {
			return naive.OpenJSONFile(dir)
		},
	},
	{
		Name:       naive.AppendLogEngineName,
		Persistent: true,
		open: func(dir string, _ Options) (kv.Store, error) {
			return naive.OpenAppendLog(dir)
		},
	},
	{
		Name:       naive.IndexedLogEngineName,
		Persistent: true,
		open: func(dir string, _ Options) (kv.Store, error) {
			return naive.OpenIndexedLog(dir)
		},
	},
	{
		Name:       seglog.EngineName,
		Persistent: true,
		open: func(dir string, o Options) (kv.Store, error) {
			return seglog.Open(dir, seglog.Options{
				MaxSegmentSize: o.MaxSegmentSize,
				Reclaim:        o.Reclaim,
			})
		},
	},
	{
		Name:       lsmtree.EngineName,
		Persistent: true,
		open: func(dir string, o Options) (kv.Store, error) {
			return lsmtree.NewLsmTree(dir, lsmtree.Options{
				MaxMemtableSize: o.MaxMemtableSize,
				SparseIndexSize: o.SparseIndexSize,
				Reclaim:         o.Reclaim,
			})
		},
	},
}

// EngineNames returns the names of all engines in registry order.
func EngineNames() []string {
	names := make([]string, len(Engines))
	for i, e := range Engines {
		names[i] = e.Name
	}
	return names
}

func Lookup(name string) (Engine, error) {
	for _, e := range Engines {
		if e.Name == name {
			return e, nil
		}
	}
	return Engine{}, fmt.Errorf("%w %q, expected one of %v", ErrUnknownEngine, name, EngineNames())
}
