package logx

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns the shared JSON logger. Level comes from LOG_LEVEL
// (defaults to info) so the notifier can run quieter than the API.
func New() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}
