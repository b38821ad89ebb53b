// Package logging configures the shared structured logger.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus logger. CORTEX_LOG selects the level
// (debug, info, warn, error; default info). JSON output is used when
// ENVIRONMENT=production so logs can be aggregated.
func Init() {
	level, err := logrus.ParseLevel(os.Getenv("CORTEX_LOG"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(os.Getenv("ENVIRONMENT"), "production") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Component returns a logger scoped to one component.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
