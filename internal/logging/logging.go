package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the process-wide logger. Level comes from LOG_LEVEL.
func Init() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = logrus.DebugLevel
		case "info":
			level = logrus.InfoLevel
		case "warn", "warning":
			level = logrus.WarnLevel
		case "error", "production", "prod":
			level = logrus.ErrorLevel
		}
	}
	logger.SetLevel(level)

	return logger
}
