package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options controls logger output. Zero values mean info level and text format.
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

// NewLogger creates a configured logrus logger tagged with the app name
func NewLogger(appName string, opts Options) *logrus.Logger {
	logger := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(opts.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger.AddHook(appHook{app: appName})
	return logger
}

// appHook stamps every entry with the app field
type appHook struct {
	app string
}

func (h appHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h appHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["app"]; !ok {
		entry.Data["app"] = h.app
	}
	return nil
}
