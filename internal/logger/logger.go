package logger

import (
	"io"
	"os"
	"strings"

	"course-marketplace/internal/config"

	"github.com/sirupsen/logrus"
)

// Logger оборачивает logrus и используется всеми слоями приложения
type Logger struct {
	*logrus.Logger
}

// New создает логгер по конфигурации. Некорректный уровень заменяется на info,
// недоступный файл - на stdout.
func New(cfg *config.LoggerConfig) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			l.WithError(err).WithField("file", cfg.File).Warn("Failed to open log file, using stdout")
		} else {
			out = io.MultiWriter(os.Stdout, file)
		}
	}
	l.SetOutput(out)

	return &Logger{Logger: l}
}

// Component возвращает запись с полем component для логов подсистемы
func (l *Logger) Component(name string) *logrus.Entry {
	return l.WithField("component", name)
}
