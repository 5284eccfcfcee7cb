package bootstrap

import (
	"errors"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/lindend/dabble/internal/bench"
	"github.com/lindend/dabble/internal/config"
	"github.com/lindend/dabble/internal/db"
)

type command struct {
	// Number of positional arguments after the command name
	args int
	// Invoked through the container, so it may ask for any provided type
	run interface{}
}

var commands = map[string]command{
	"bench":    {args: 0, run: runBench},
	"get":      {args: 1, run: runGet},
	"set":      {args: 2, run: runSet},
	"maintain": {args: 0, run: runMaintain},
	"inspect":  {args: 0, run: runInspect},
}

func runBench(cfg *config.Config, out io.Writer) error {
	results, err := bench.Run(cfg.Engine, cfg.Iterations, cfg.Options)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(out, "%-24s %v\n", r.Workload, r.Elapsed)
	}
	return nil
}

func runGet(cfg *config.Config, c *db.Collection, out io.Writer) (err error) {
	defer func() { err = errors.Join(err, c.Close()) }()

	v, err := c.Get(cfg.Args[1])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(v))
	return err
}

func runSet(cfg *config.Config, c *db.Collection) (err error) {
	defer func() { err = errors.Join(err, c.Close()) }()

	return c.Set(cfg.Args[1], []byte(cfg.Args[2]))
}

func runMaintain(c *db.Collection) (err error) {
	defer func() { err = errors.Join(err, c.Close()) }()

	return c.Maintain()
}

func runInspect(c *db.Collection, out io.Writer) (err error) {
	defer func() { err = errors.Join(err, c.Close()) }()

	if _, err := fmt.Fprintf(out, "%s at %s\n", c.Engine(), c.Path()); err != nil {
		return err
	}
	spew.Fdump(out, c.Stats())
	return nil
}
