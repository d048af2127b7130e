package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
// KIMIXCHANGE_LOG_LEVEL controls the log level: debug, info, warn, error (default: info).
// KIMIXCHANGE_LOG_FORMAT=json keeps raw JSON lines (Lambda, log shippers);
// anything else uses the human-readable console writer on stderr.
func Init() {
	zerolog.SetGlobalLevel(parseLevel(os.Getenv("KIMIXCHANGE_LOG_LEVEL")))

	if os.Getenv("KIMIXCHANGE_LOG_FORMAT") == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
