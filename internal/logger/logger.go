// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup writes human-readable logs to out (stderr when nil). verbose enables
// debug output.
func Setup(out io.Writer, verbose bool) {
	if out == nil {
		out = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Discard silences all logging.
func Discard() {
	log.Logger = zerolog.Nop()
}
