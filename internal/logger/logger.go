package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process logger from LOG_LEVEL and LOG_FORMAT (json|text).
func New() *logrus.Logger {
	return newWithOutput(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

func newWithOutput(w io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil || level == "" {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Component returns an entry tagged with the emitting component.
func Component(l logrus.FieldLogger, name string) *logrus.Entry {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return l.WithField("component", name)
}
