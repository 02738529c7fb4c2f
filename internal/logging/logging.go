// Package logging wraps zap for the corpus manager and background
// writer's lifecycle logs (corpus name, change-id, checkpoint). The
// executor, planner and graph-storage layers do no logging.
package logging

import (
	"github.com/nornicorpus/nornicorpus/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger from a LoggingConfig. An unrecognized level
// string falls back to info; a no-op logger is returned only if the zap
// configuration fails to build.
func New(cfg config.LoggingConfig) *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// ForCorpus returns a logger scoped to a single corpus, as used by the
// manager and background writer.
func ForCorpus(base *zap.Logger, name string) *zap.Logger {
	return base.With(zap.String("corpus", name))
}
