// Package logging provides the structured console logger shared by all
// four participants.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console-pretty zerolog.Logger tagged with the owning
// service name, the way each participant's main wires its own logger
// before constructing anything else.
func New(service string) zerolog.Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(writer).With().Timestamp().Str("service", service).Logger()
}
