package logger

import (
	"github.com/franzego/partnernotify/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func New(app config.AppConfig, c config.LogConfig) (*zap.Logger, error) {
	var cfg zap.Config
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	level := new(zapcore.Level)
	if err := level.Set(c.Level); err != nil {
		*level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(*level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build(
		zap.Fields(
			zap.String("service", app.Name),
			zap.String("env", app.Env),
			zap.String("version", app.Version),
		),
	)
}
