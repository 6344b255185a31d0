// Package applog is the mesh's bound-context logger, wrapping
// go.uber.org/zap the way every teacher app constructs its logger, adding
// the channel taxonomy SPEC_FULL.md §4.8 requires: edge, debug, info,
// prompt, warn, error. EDGE is first-class and always emitted — it is the
// one line every ingress request produces regardless of configured level.
package applog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger binds a *zap.Logger plus the service's configured minimum level
// for the non-edge channels.
type Logger struct {
	z        *zap.Logger
	minLevel zapcore.Level
}

var channelLevels = map[string]zapcore.Level{
	"edge":  zapcore.DebugLevel,
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"prompt": zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// ParseLevel validates a LOG_LEVEL value against the channel taxonomy.
// LOG_LEVEL has no default: an empty or unrecognized value is an error so
// boot fails fast rather than silently picking a level.
func ParseLevel(raw string) (zapcore.Level, error) {
	lvl, ok := channelLevels[raw]
	if !ok {
		return 0, fmt.Errorf("applog: LOG_LEVEL %q is not one of edge|debug|info|prompt|warn|error", raw)
	}
	return lvl, nil
}

// New builds a Logger at the given minimum level over a production zap
// core (JSON encoding, ISO8601 timestamps), matching every teacher app's
// zap.NewProduction() construction.
func New(service string, minLevel zapcore.Level) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(minLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build(zap.Fields(zap.String("service", service)))
	if err != nil {
		return nil, fmt.Errorf("applog: build zap logger: %w", err)
	}
	return &Logger{z: z, minLevel: minLevel}, nil
}

// Raw returns the underlying *zap.Logger for packages that only need the
// standard zap surface (e.g. echo middleware configs expecting *zap.Logger).
func (l *Logger) Raw() *zap.Logger { return l.z }

// Edge emits the EDGE channel's single ingress line. Always emitted: EDGE
// is exempt from LOG_LEVEL filtering since it is the mesh's one
// unconditional audit-adjacent trace.
func (l *Logger) Edge(msg string, fields ...zap.Field) {
	// Written at Info, or at the configured minimum when that is higher, so
	// the level filter never drops it.
	lvl := zapcore.InfoLevel
	if l.minLevel > lvl {
		lvl = l.minLevel
	}
	if ce := l.z.Check(lvl, msg); ce != nil {
		ce.Write(append(fields, zap.String("channel", "edge"))...)
	}
}

// Debug includes call-site origin per SPEC_FULL.md §4.8.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.z.WithOptions(zap.AddCaller()).Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...zap.Field)   { l.z.Info(msg, fields...) }
func (l *Logger) Prompt(msg string, fields ...zap.Field) { l.z.Info(msg, append(fields, zap.String("channel", "prompt"))...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)   { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field)  { l.z.Error(msg, fields...) }

// Sync flushes buffered log entries, mirroring every teacher main.go's
// `defer logger.Sync()`.
func (l *Logger) Sync() error { return l.z.Sync() }
