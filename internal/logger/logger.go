// Package logger builds the logrus logger used across the SDK.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls level and optional rotating file output.
type Config struct {
	Level      string `yaml:"level" env:"LEVEL"`
	OutputFile string `yaml:"output_file" env:"OUTPUT_FILE"`
	MaxSize    int    `yaml:"max_size" env:"MAX_SIZE"` // MB
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"MAX_AGE"` // days
	Compress   bool   `yaml:"compress" env:"COMPRESS"`
}

// New returns a logger writing to stdout and, when OutputFile is set, to a
// rotated file as well. Unknown levels fall back to info.
func New(config Config) (*logrus.Logger, error) {
	return newWithConsole(config, os.Stdout)
}

func newWithConsole(config Config, console io.Writer) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
	})

	writers := []io.Writer{console}
	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0o755); err != nil {
			return nil, errors.Wrap(err, "create log directory")
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}
	log.SetOutput(io.MultiWriter(writers...))
	return log, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
