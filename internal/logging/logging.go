package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Speshl/gorrc_remote/internal/config"
	log "github.com/sirupsen/logrus"
)

const TimestampFormat = "2006/01/02 15:04:05.000000"

// Setup configures the standard logrus logger. Logs always go to stdout and also to cfg.File when set.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
	})

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	err = os.MkdirAll(filepath.Dir(cfg.File), 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory for '%s' - %w", cfg.File, err)
	}

	logFile, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file '%s' - %w", cfg.File, err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	return logFile, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
