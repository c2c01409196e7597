// Package logging builds the zap logger every VSTP binary and package uses,
// configured from internal/config's LoggingConfig (level, human-readable
// "console" vs "json" format).
package logging

import (
	"strings"

	"github.com/nickolajgrishuk/vstp/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger from cfg. An unrecognised level falls
// back to info; an unrecognised format falls back to console.
func New(cfg config.LoggingConfig) (*zap.SugaredLogger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if strings.ToLower(cfg.Format) != "json" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return log.Sugar(), nil
}
