package logger

import (
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base = zap.NewNop()

type Config struct {
	Level string
	Dev   bool
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init replaces the no-op logger with a zap logger writing to stdout.
// Production output is JSON; Dev switches to the console encoder.
func Init(cfg Config) error {
	lvl := levelFromString(cfg.Level)

	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		l, err := c.Build(zap.AddCallerSkip(1))
		if err != nil {
			return err
		}
		base = l
		return nil
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl)
	base = zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	base.Info("logger initialized")
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = base.Sync()
}

func toFields(fields map[string]any) []zap.Field {
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
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func Debug(msg string, fields map[string]any) {
	base.Debug(msg, toFields(fields)...)
}

func Info(msg string, fields map[string]any) {
	base.Info(msg, toFields(fields)...)
}

func Warn(msg string, fields map[string]any) {
	base.Warn(msg, toFields(fields)...)
}

func Error(msg string, fields map[string]any) {
	base.Error(msg, toFields(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	base.Fatal(msg, toFields(fields)...)
}
