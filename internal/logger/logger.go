package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger *logrus.Logger

// InitLogger initializes the global logger with rotated per-level files under logDir
func InitLogger(logLevel, logDir string) error {
	Logger = logrus.New()

	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	Logger.SetLevel(parseLevel(logLevel))

	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})

	Logger.AddHook(&FileHook{
		ErrorWriter: rotatingFile(filepath.Join(logDir, "error.log")),
		InfoWriter:  rotatingFile(filepath.Join(logDir, "info.log")),
		DebugWriter: rotatingFile(filepath.Join(logDir, "debug.log")),
	})

	Logger.SetOutput(os.Stdout)

	return nil
}

// InitWithWriter installs a logger that writes only to w. Used by tests and tools.
func InitWithWriter(logLevel string, w io.Writer) {
	Logger = logrus.New()
	Logger.SetLevel(parseLevel(logLevel))
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
	Logger.SetOutput(w)
}

func parseLevel(logLevel string) logrus.Level {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func rotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

// FileHook implements logrus.Hook to write different log levels to different files
type FileHook struct {
	ErrorWriter io.Writer
	InfoWriter  io.Writer
	DebugWriter io.Writer
}

func (hook *FileHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	switch entry.Level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		_, err = hook.ErrorWriter.Write([]byte(line))
	case logrus.WarnLevel, logrus.InfoLevel:
		_, err = hook.InfoWriter.Write([]byte(line))
	case logrus.DebugLevel, logrus.TraceLevel:
		_, err = hook.DebugWriter.Write([]byte(line))
	}

	return err
}

func (hook *FileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Convenience functions for structured logging
func Error(msg string, fields map[string]interface{}) {
	if Logger != nil {
		Logger.WithFields(fields).Error(msg)
	}
}

func Info(msg string, fields map[string]interface{}) {
	if Logger != nil {
		Logger.WithFields(fields).Info(msg)
	}
}

func Debug(msg string, fields map[string]interface{}) {
	if Logger != nil {
		Logger.WithFields(fields).Debug(msg)
	}
}

func Warn(msg string, fields map[string]interface{}) {
	if Logger != nil {
		Logger.WithFields(fields).Warn(msg)
	}
}

func ErrorMsg(msg string) {
	Error(msg, nil)
}

func InfoMsg(msg string) {
	Info(msg, nil)
}

func DebugMsg(msg string) {
	Debug(msg, nil)
}

func WarnMsg(msg string) {
	Warn(msg, nil)
}
