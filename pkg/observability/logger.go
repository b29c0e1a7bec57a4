package observability

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the application logger. level is a logrus level name
// ("debug", "info", ...); unknown values fall back to info. jsonFormat
// switches from the human-readable text formatter to JSON, which the
// daemon uses in production.
func NewLogger(level string, jsonFormat bool, output io.Writer) *logrus.Logger {
	log := logrus.New()
	if output == nil {
		output = os.Stderr
	}
	log.SetOutput(output)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if jsonFormat {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
