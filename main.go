package main

import (
	"os"

	"github.com/lindend/dabble/internal/bootstrap"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := bootstrap.Run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("dabble failed")
	}
}
