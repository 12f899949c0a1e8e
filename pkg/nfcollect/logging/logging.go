package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Configure sets the level and formatter of logger. Format is normal or
// json.
func Configure(logger *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "normal", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	logger.SetLevel(lvl)
	return nil
}

// NewLogger constructs a logrus logger from level/format inputs.
func NewLogger(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if err := Configure(logger, level, format); err != nil {
		return nil, err
	}
	return logger, nil
}
