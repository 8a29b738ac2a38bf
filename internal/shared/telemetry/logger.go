package telemetry

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the process-wide structured logger.
type Config struct {
	ServiceName string
	Environment string
	Level       string
	Format      string
}

var (
	mu     sync.RWMutex
	logger = newDefault()
)

func newDefault() *zap.Logger {
	return zap.New(zapcore.NewCore(newEncoder("json"), zapcore.Lock(os.Stdout), zapcore.InfoLevel))
}

// Init replaces the global logger with one built from cfg.
func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", raw, err)
		}
	}
	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.Lock(os.Stdout), level)
	l := zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))

	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "sparefinder"
	}
	l = l.With(zap.String("service", service), zap.String("env", cfg.Environment))
	swap(l)
	return nil
}

// UseWriter routes log output to w. Intended for tests that assert on log lines.
func UseWriter(w io.Writer) {
	swap(zap.New(zapcore.NewCore(newEncoder("json"), zapcore.AddSync(w), zapcore.DebugLevel)))
}

// Sync flushes buffered log entries.
func Sync() {
	_ = current().Sync()
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	current().Info(msg, toZap(fields)...)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	current().Warn(msg, toZap(fields)...)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	current().Error(msg, toZap(fields)...)
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewJSONEncoder(encCfg)
}

func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		switch v := fields[k].(type) {
		case error:
			out = append(out, zap.String(k, v.Error()))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func swap(l *zap.Logger) {
	mu.Lock()
	prev := logger
	logger = l
	mu.Unlock()
	if prev != nil {
		_ = prev.Sync()
	}
}
