package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

var (
	mu      sync.RWMutex
	logger  *zap.SugaredLogger
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	format  = FormatConsole
	initOne sync.Once
)

// initLogger builds the global logger writing to stderr.
func initLogger() {
	initOne.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		logger = build(format)
	})
}

func build(f Format) *zap.SugaredLogger {
	cfg := zap.Config{
		Level:             level,
		Development:       false,
		Encoding:          string(f),
		DisableStacktrace: true,
		DisableCaller:     true,
		EncoderConfig:     zap.NewDevelopmentEncoderConfig(),
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	if f == FormatJSON {
		cfg.EncoderConfig = zap.NewProductionEncoderConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}
	l, err := cfg.Build()
	if err != nil {
		// Only reachable with a broken encoder name; keep logging somewhere.
		l = zap.NewExample()
		l.Error("log: falling back to example logger", zap.Error(err))
	}
	return l.Sugar()
}

// SetLevel changes the minimum level. It is safe to call at any time.
func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		level.SetLevel(zapcore.WarnLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// ParseLevel maps a config string ("debug", "INFO", ...) to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug, nil
	case "", "info", "INFO":
		return LevelInfo, nil
	case "warn", "WARN":
		return LevelWarn, nil
	case "error", "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// SetFormat switches between console and JSON output.
func SetFormat(f Format) error {
	if f != FormatConsole && f != FormatJSON {
		return fmt.Errorf("unknown log format %q", f)
	}
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	old := logger
	format = f
	logger = build(f)
	_ = old.Sync()
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}

func current() *zap.SugaredLogger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warnw(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Errorw(msg, extended...)
}
