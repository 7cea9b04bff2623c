package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/internal/pkg/env"
)

// New builds the process logger. Development gets coloured text output,
// everything else JSON lines for the log shipper.
func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if env.IsDev() {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger.SetLevel(ParseLevel(env.GetEnv("LOG_LEVEL", "info")))
	return logger
}

// ParseLevel maps a LOG_LEVEL value to a logrus level, defaulting to info.
func ParseLevel(raw string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
