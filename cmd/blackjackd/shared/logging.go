package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogger configures a logger at the given level, optionally teeing
// to a log file. An unparseable level falls back to info.
func SetupLogger(level, file string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Warn("failed to open log file, logging to stderr only", "file", file, "error", err)
			return logger
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	return logger
}
