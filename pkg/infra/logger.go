package infra

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Flipped by the admin API between info and debug.
	LoggerLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// LoggerFactory hands out named loggers that share one core, so a
// level change applies to every desk at once.
type LoggerFactory struct {
	baseLogger *zap.Logger
}

func (f *LoggerFactory) Create(name string) *zap.Logger {
	return f.baseLogger.Named(name)
}

// Sync flushes buffered entries. Call it once on shutdown.
func (f *LoggerFactory) Sync() {
	_ = f.baseLogger.Sync()
}

func ProvideLoggerFactory(env *Env) *LoggerFactory {
	encodeLevel := zapcore.CapitalColorLevelEncoder
	if env.LogEncoding == "json" {
		encodeLevel = zapcore.CapitalLevelEncoder
	}

	cfg := zap.Config{
		Level:            LoggerLevel,
		Encoding:         env.LogEncoding,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "name",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}
	logger := zap.Must(cfg.Build()).With(zap.String("guild", env.GuildId))
	logger.Info("logger created", zap.String("encoding", env.LogEncoding))

	return &LoggerFactory{
		baseLogger: logger,
	}
}

// NewLoggerFactory wraps an existing logger, e.g. zap.NewNop() in tests.
func NewLoggerFactory(baseLogger *zap.Logger) *LoggerFactory {
	return &LoggerFactory{
		baseLogger: baseLogger,
	}
}
