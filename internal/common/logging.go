package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelEnv overrides the configured log level when set.
const LevelEnv = "EXVIEW_LOG_LEVEL"

// LogConfig selects where log output goes. An empty File disables the
// rotating file sink.
type LogConfig struct {
	App        string
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Console    io.Writer
}

var (
	logMu  sync.RWMutex
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("app", "exview").Logger()
	rotator *lumberjack.Logger
)

// SetupLogging installs the process logger. It returns a closer for the
// rotating file, which is a no-op when no file was configured.
func SetupLogging(cfg LogConfig) (func() error, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}

	var lj *lumberjack.Logger
	if cfg.File != "" {
		lj = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   cfg.Compress,
		}
		writers = append(writers, lj)
	}
	app := cfg.App
	if app == "" {
		app = "exview"
	}
	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).
		With().Timestamp().Str("app", app).Logger()

	logMu.Lock()
	logger = l
	prev := rotator
	rotator = lj
	logMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return func() error {
		if lj == nil {
			return nil
		}
		return lj.Close()
	}, nil
}

func parseLevel(configured string) (zerolog.Level, error) {
	s := strings.TrimSpace(os.Getenv(LevelEnv))
	if s == "" {
		s = strings.TrimSpace(configured)
	}
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Logger returns the process logger tagged with component.
func Logger(component string) zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if component == "" {
		return logger
	}
	return logger.With().Str("component", component).Logger()
}

// SetLogger replaces the process logger. Tests use it to capture output.
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	logger = l
	logMu.Unlock()
}

func Logf(format string, args ...interface{}) {
	l := Logger("")
	l.Info().Msgf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	l := Logger("")
	l.Warn().Msgf(format, args...)
}

func Debugf(format string, args ...interface{}) {
	l := Logger("")
	l.Debug().Msgf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	l := Logger("")
	l.Fatal().Msgf(format, args...)
}
