package seglog

import "github.com/lindend/dabble/internal/kv"

type Options struct {
	// MaxSegmentSize is the number of records after which the active segment
	// is retired, and the number of keys per consolidated segment.
	MaxSegmentSize int
	Reclaim        kv.Reclaim
}

func DefaultOptions() Options {
	return Options{
		MaxSegmentSize: 100,
		Reclaim:        kv.KeepSuperseded,
	}
}
