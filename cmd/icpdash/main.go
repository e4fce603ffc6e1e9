// Command icpdash runs the ICP dashboard API and its maintenance tasks.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("icpdash failed")
		os.Exit(1)
	}
}
