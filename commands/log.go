package commands

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}).
		With().
		Timestamp().
		Str("app", APP).
		Logger()

	once sync.Once
)

// configureLogging sets the global log level once. --debug overrides the
// configured level.
func configureLogging(level string, debug bool) {
	once.Do(func() {
		lvl := zerolog.InfoLevel
		if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
			lvl = parsed
		}

		if debug {
			lvl = zerolog.DebugLevel
		}

		zerolog.SetGlobalLevel(lvl)
		zerolog.TimeFieldFormat = time.RFC3339
	})
}

func logger(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

func debugf(format string, args ...any) {
	base.Debug().Msg(fmt.Sprintf(format, args...))
}

func infof(format string, args ...any) {
	base.Info().Msg(fmt.Sprintf(format, args...))
}

func warnf(format string, args ...any) {
	base.Warn().Msg(fmt.Sprintf(format, args...))
}
