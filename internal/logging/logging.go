// Package logging builds the process-wide logrus logger from config.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/naduri/naduri-backend/internal/config"
)

// New returns a logger writing to stderr with the configured level and format.
// Unknown levels fall back to info.
func New(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
