package scandoc

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewLogger builds a logger writing to stderr from the log configuration.
func NewLogger(config LogConfig) (*logrus.Logger, error) {
	return newLoggerTo(os.Stderr, config)
}

func newLoggerTo(w io.Writer, config LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)

	level := config.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", config.Level)
	}
	logger.SetLevel(parsed)

	switch config.Format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("invalid log format %q", config.Format)
	}

	return logger, nil
}

// discardLogger is used when a component is built without a logger.
func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
