// Package logutil installs a charmbracelet/log handler behind log/slog so the
// rest of the code can keep calling slog directly.
package logutil

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "postflow", ReportTimestamp: true, Level: log.InfoLevel})
	mu     sync.Mutex
)

// Setup points the default slog logger at a charmbracelet handler writing to w
// at the named level. Unknown levels fall back to info.
func Setup(w io.Writer, level string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()

	logger = log.NewWithOptions(w, log.Options{
		Prefix:          "postflow",
		ReportTimestamp: true,
		Level:           ParseLevel(level),
	})
	slog.SetDefault(slog.New(logger))
	return logger
}

// SetVerbose switches the global level between debug and info.
func SetVerbose(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	if enable {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
