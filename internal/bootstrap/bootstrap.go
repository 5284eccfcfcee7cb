// Package bootstrap wires the dabble command together and runs it.
package bootstrap

import (
	"errors"
	"fmt"
	"io"

	"github.com/lindend/dabble/internal/config"
	"github.com/lindend/dabble/internal/db"
	"github.com/rs/zerolog"
	"go.uber.org/dig"
)

var ErrUsage = errors.New("usage: dabble [flags] bench | get <key> | set <key> <value> | maintain | inspect")

// Run parses args and executes the command they name, writing results to out.
func Run(args []string, out io.Writer, envFiles ...string) error {
	container := dig.New()
	serviceConstructors := []interface{}{
		func() (*config.Config, error) {
			return config.Load(args, envFiles...)
		},
		func() io.Writer {
			return out
		},
		collection,
	}
	for _, service := range serviceConstructors {
		if err := container.Provide(service); err != nil {
			return err
		}
	}

	err := container.Invoke(func(cfg *config.Config) error {
		zerolog.SetGlobalLevel(cfg.LogLevel)
		if len(cfg.Args) == 0 {
			return ErrUsage
		}

		cmd, ok := commands[cfg.Args[0]]
		if !ok {
			return fmt.Errorf("%w: unknown command %q", ErrUsage, cfg.Args[0])
		}
		if len(cfg.Args)-1 != cmd.args {
			return fmt.Errorf("%w: %s takes %d arguments", ErrUsage, cfg.Args[0], cmd.args)
		}
		return container.Invoke(cmd.run)
	})
	if err != nil {
		return dig.RootCause(err)
	}
	return nil
}

func collection(cfg *config.Config) (*db.Collection, error) {
	return db.Open(cfg.Engine, cfg.DataDir, cfg.Options)
}
