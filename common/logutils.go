package common

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const ServiceName = "blogapi"

func init() {
	logger := logrus.StandardLogger()
	logger.Out = os.Stdout
	logger.Formatter = &logrus.TextFormatter{}
	logger.AddHook(&DefaultFieldsHook{})
}

// ConfigureLogger switches the standard logger to JSON output in release mode and applies the level.
// An unknown level keeps the current one.
func ConfigureLogger(level string, release bool) {
	logger := logrus.StandardLogger()
	if release {
		logger.Formatter = &logrus.JSONFormatter{}
	} else {
		logger.Formatter = &logrus.TextFormatter{}
	}
	if lvl, err := logrus.ParseLevel(strings.TrimSpace(level)); err == nil {
		logger.SetLevel(lvl)
	} else if level != "" {
		logrus.Warnf("unknown log level %q, keep %s", level, logger.GetLevel())
	}
}

type DefaultFieldsHook struct {
}

func (hook *DefaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *DefaultFieldsHook) Fire(e *logrus.Entry) error {
	e.Data["service"] = ServiceName
	e.Data["instance"] = GetServiceInstance()
	return nil
}

var serviceInstance string

func GetServiceInstance() string {
	if serviceInstance == "" {
		serviceInstance, _ = os.Hostname()
	}
	return serviceInstance
}
