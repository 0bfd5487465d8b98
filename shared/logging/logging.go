package logging

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	_loggers     []*logrus.Logger
	_loggersLock sync.Mutex
	_level       = logrus.InfoLevel
)

type componentHook struct {
	name string
}

func (c componentHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (c componentHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["component"]; !ok {
		entry.Data["component"] = c.name
	}
	return nil
}

func NewLogger(loggerName string) *logrus.Logger {
	logger := logrus.New()
	//logger.SetOutput(io.MultiWriter(os.Stdout))
	logger.AddHook(componentHook{name: loggerName})

	_loggersLock.Lock()
	logger.SetLevel(_level)
	_loggers = append(_loggers, logger)
	_loggersLock.Unlock()

	return logger
}

// SetLevel applies the level to every logger created so far and to the ones created later.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	_loggersLock.Lock()
	defer _loggersLock.Unlock()
	_level = lvl
	for _, l := range _loggers {
		l.SetLevel(lvl)
	}
	return nil
}
