// Package bench measures dabble engines with a few simple workloads.
package bench

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/lindend/dabble/internal/db"
	"github.com/lindend/dabble/internal/kv"

	"github.com/rs/zerolog/log"
)

type Workload struct {
	Name        string
	Description string
	Run         func(s kv.Store, iterations int) (time.Duration, error)
}

var Workloads = []Workload{
	{
		Name:        "sequential_set_and_get",
		Description: "Sets and immediately gets a sequence of keys. Read-after-write performance.",
		Run:         SequentialSetAndGet,
	},
	{
		Name:        "sequential_sets",
		Description: "Sets a sequence of keys. Write throughput.",
		Run:         SequentialSets,
	},
	{
		Name:        "sequential_gets",
		Description: "Gets every key of a pre-filled store in order.",
		Run:         SequentialGets,
	},
	{
		Name:        "random_gets",
		Description: "Gets random keys of a pre-filled store.",
		Run:         RandomGets,
	},
}

func key(i int) string {
	return fmt.Sprintf("key_%d", i)
}

func value(i int) []byte {
	return []byte(fmt.Sprintf("value_%d", i))
}

func fill(s kv.Store, iterations int) error {
	for i := 0; i < iterations; i++ {
		if err := s.Set(key(i), value(i)); err != nil {
			return err
		}
	}
	return nil
}

func SequentialSetAndGet(s kv.Store, iterations int) (time.Duration, error) {
	start := time.Now()
	for i := 0; i < iterations; i++ {
		if err := s.Set(key(i), value(i)); err != nil {
			return 0, err
		}
		if _, err := s.Get(key(i)); err != nil {
			return 0, err
		}
	}
	return time.Since(start), nil
}

func SequentialSets(s kv.Store, iterations int) (time.Duration, error) {
	start := time.Now()
	if err := fill(s, iterations); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// SequentialGets only times the reads, not filling the store.
func SequentialGets(s kv.Store, iterations int) (time.Duration, error) {
	if err := fill(s, iterations); err != nil {
		return 0, err
	}

	start := time.Now()
	for i := 0; i < iterations; i++ {
		if _, err := s.Get(key(i)); err != nil {
			return 0, err
		}
	}
	return time.Since(start), nil
}

// RandomGets only times the reads, not filling the store.
func RandomGets(s kv.Store, iterations int) (time.Duration, error) {
	if err := fill(s, iterations); err != nil {
		return 0, err
	}

	start := time.Now()
	for i := 0; i < iterations; i++ {
		if _, err := s.Get(key(rand.Intn(iterations))); err != nil {
			return 0, err
		}
	}
	return time.Since(start), nil
}

type Result struct {
	Workload string
	Elapsed  time.Duration
}

// Run executes every workload against engine, each on a fresh temporary
// directory.
func Run(engine string, iterations int, options db.Options) ([]Result, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("invalid number of iterations %d", iterations)
	}

	results := make([]Result, 0, len(Workloads))
	for _, w := range Workloads {
		log.Info().
			Str("engine", engine).
			Str("workload", w.Name).
			Int("iterations", iterations).
			Msg(w.Description)

		elapsed, err := runOne(engine, iterations, options, w)
		if err != nil {
			return results, fmt.Errorf("%s: %w", w.Name, err)
		}

		log.Info().
			Str("engine", engine).
			Str("workload", w.Name).
			Dur("elapsed", elapsed).
			Msg("Completed")
		results = append(results, Result{Workload: w.Name, Elapsed: elapsed})
	}
	return results, nil
}

func runOne(engine string, iterations int, options db.Options, w Workload) (elapsed time.Duration, err error) {
	dir, err := os.MkdirTemp("", "dabble-bench-")
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, os.RemoveAll(dir))
	}()

	c, err := db.Open(engine, dir, options)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, c.Close())
	}()

	return w.Run(c, iterations)
}
