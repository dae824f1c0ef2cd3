package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

const serviceName = "crop-inspector"

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	SetLevel(os.Getenv("LOG_LEVEL"))
}

// SetLevel applies a logrus level name. Unknown or empty names fall back to info.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)
}

// Component returns an entry tagged with the service and the emitting component.
func Component(name string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"service":   serviceName,
		"component": name,
	})
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}

func Info(msg string) {
	Logger.Info(msg)
}
