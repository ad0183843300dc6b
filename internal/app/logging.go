package app

import (
	stdslog "log/slog"
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/randselect"
	"github.com/unkn0wn-root/randselect/config"
	logruslog "github.com/unkn0wn-root/randselect/log/logrus"
	slogger "github.com/unkn0wn-root/randselect/log/slog"
	zaplog "github.com/unkn0wn-root/randselect/log/zap"
)

// NewLogger builds the configured backend. The returned func flushes it.
func NewLogger(cfg config.LogConfig) (randselect.Logger, *stdslog.Logger, func(), error) {
	switch cfg.Backend {
	case "logrus":
		l := logrus.New()
		l.SetFormatter(&logrus.JSONFormatter{})
		if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
			l.SetLevel(lvl)
		}
		return logruslog.LogrusLogger{E: logrus.NewEntry(l)}, stdslog.Default(), func() {}, nil
	case "slog":
		var lvl stdslog.Level
		_ = lvl.UnmarshalText([]byte(cfg.Level))
		sl := stdslog.New(stdslog.NewJSONHandler(os.Stderr, &stdslog.HandlerOptions{Level: lvl}))
		return slogger.Logger{L: sl}, sl, func() {}, nil
	default:
		zc := zap.NewProductionConfig()
		if lvl, err := zapcore.ParseLevel(cfg.Level); err == nil {
			zc.Level = zap.NewAtomicLevelAt(lvl)
		}
		zl, err := zc.Build()
		if err != nil {
			return nil, nil, nil, err
		}
		return zaplog.ZapLogger{L: zl}, stdslog.Default(), func() { _ = zl.Sync() }, nil
	}
}
