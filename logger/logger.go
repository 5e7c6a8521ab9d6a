package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the package-wide logrus instance. It defaults to stdout at info
// level until Init configures it.
var (
	Logger *logrus.Logger
	once   sync.Once
)

// Config controls log level and destination.
type Config struct {
	LogPath  string
	LogLevel string
}

// formatter renders entries as [time] [LVL ] (file:func:line) message.
type formatter struct{}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("15:04:05 MST 2006/01/02")

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	msg := fmt.Sprintf("[%s] [%s] (%s) %s\n",
		timestamp, level, caller(), entry.Message)
	return []byte(msg), nil
}

// caller walks past the logging frames to the first application frame.
func caller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "sirupsen") ||
			strings.Contains(file, "/logger/logger.go") {
			continue
		}
		funcName := runtime.FuncForPC(pc).Name()
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), funcName, line)
	}
	return "unknown:unknown:0"
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func ensure() {
	once.Do(func() {
		if Logger == nil {
			Logger = logrus.New()
			Logger.SetFormatter(&formatter{})
			Logger.SetOutput(os.Stdout)
			Logger.SetLevel(logrus.InfoLevel)
		}
	})
}

// Init configures the package logger. When a log path is given, output is
// duplicated to stdout and the file.
func Init(config Config) error {
	ensure()
	Logger.SetLevel(parseLevel(config.LogLevel))
	if config.LogPath == "" {
		Logger.SetOutput(os.Stdout)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(config.LogPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(config.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		Logger.SetOutput(os.Stdout)
		Logger.Warnf("failed to open log file %s, falling back to stdout: %v", config.LogPath, err)
		return nil
	}
	Logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return nil
}

func Debugf(format string, args ...interface{}) {
	ensure()
	Logger.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	ensure()
	Logger.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	ensure()
	Logger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	ensure()
	Logger.Errorf(format, args...)
}
