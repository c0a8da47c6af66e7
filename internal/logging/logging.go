// Package logging holds the process-wide zap logger. Library packages log
// through the package functions so that the CLI decides once, at startup,
// where logs go and how verbose they are.
package logging

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
)

var (
	mu           sync.RWMutex
	globalLogger *zap.Logger
	helperLogger *zap.Logger // globalLogger minus the frame of the package functions
	globalLevel  = zap.NewAtomicLevelAt(zapcore.WarnLevel)
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stdout, stderr, or file path
}

// Init builds the global logger. The console format is meant for a
// terminal: no timestamps, no stack traces.
func Init(cfg Config) error {
	level := zapcore.WarnLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}

	var zc zap.Config
	switch cfg.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.EncoderConfig.TimeKey = ""
		zc.DisableStacktrace = true
		zc.DisableCaller = level > zapcore.DebugLevel
	case "json", "":
		zc = zap.NewProductionConfig()
	default:
		return fmt.Errorf("log format %q: want json or console", cfg.Format)
	}

	globalLevel.SetLevel(level)
	zc.Level = globalLevel
	output := cfg.OutputPath
	if output == "" {
		output = "stderr"
	}
	zc.OutputPaths = []string{output}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return err
	}
	Replace(logger.Named("webdrive"))
	return nil
}

// Replace swaps the global logger. Tests use it with observer loggers.
func Replace(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	setLocked(logger)
}

func setLocked(logger *zap.Logger) {
	globalLogger = logger
	helperLogger = logger.WithOptions(zap.AddCallerSkip(1))
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// SetLevel changes the level at runtime. Unknown levels are ignored.
func SetLevel(level string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return
	}
	globalLevel.SetLevel(l)
}

// Level returns the current level name.
func Level() string {
	return globalLevel.Level().String()
}

// L returns the global logger. Before Init it logs warnings and above to
// stderr as JSON.
func L() *zap.Logger {
	l, _ := loggers()
	return l
}

func helper() *zap.Logger {
	_, h := loggers()
	return h
}

func loggers() (*zap.Logger, *zap.Logger) {
	mu.RLock()
	l, h := globalLogger, helperLogger
	mu.RUnlock()
	if l != nil {
		return l, h
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		zc := zap.NewProductionConfig()
		zc.Level = globalLevel
		logger, err := zc.Build()
		if err != nil {
			logger = zap.NewNop()
		}
		setLocked(logger)
	}
	return globalLogger, helperLogger
}

// WithContext returns the logger stored in ctx, or the global logger.
func WithContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return L()
}

// WithRequestID stores requestID and a logger tagged with it in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	logger := WithContext(ctx).With(zap.String("request_id", requestID))
	ctx = context.WithValue(ctx, loggerKey, logger)
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func Debug(msg string, fields ...zap.Field) { helper().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field) { helper().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field) { helper().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { helper().Error(msg, fields...) }

func String(key, val string) zap.Field { return zap.String(key, val) }
func Int(key string, val int) zap.Field { return zap.Int(key, val) }
func Any(key string, val any) zap.Field { return zap.Any(key, val) }
func Err(err error) zap.Field { return zap.Error(err) }

// ErrDetail dumps the structured errors inside err, which zap.Error only
// shows as text. Wrapped and joined errors are walked; every error in the
// tree that has exported fields is dumped, and its own causes are not
// walked further. An error without structure gives no field.
func ErrDetail(err error) zap.Field {
	details := Details(err)
	if len(details) == 0 {
		return zap.Skip()
	}
	return zap.Reflect("error_detail", details)
}

// Details returns the structured errors of the tree rooted at err, in
// depth-first order.
func Details(err error) []error {
	var out []error
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if structured(err) {
			out = append(out, err)
			return
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				walk(e)
			}
		default:
			walk(errors.Unwrap(err))
		}
	}
	walk(err)
	return out
}

// structured reports whether err is a struct, or a pointer to one, with at
// least one exported field.
func structured(err error) bool {
	t := reflect.TypeOf(err)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}
