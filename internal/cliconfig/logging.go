package cliconfig

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/modelhost/pkg/log"
)

// Logger builds the CLI logger: console output on stderr at the configured
// level. An unknown level falls back to info.
func (c Config) Logger() log.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
	return log.NewZerologAdapterWithLogger(zl)
}
