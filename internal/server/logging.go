package server

import (
	"os"

	"github.com/DeRuina/timberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nicolaspernoud/atrium/internal/config"
)

// newLogger builds the process-wide zap.Logger: always a console core on
// stderr, plus a rotating-file core when cfg.LogToFile is set, tee'd
// together the way caddyserver/caddy composes its named logs from several
// zapcore.Cores.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		zapcore.InfoLevel,
	))

	if cfg.LogToFile {
		rotator := &timberjack.Logger{
			Filename:   "atrium.log",
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(rotator),
			zapcore.InfoLevel,
		))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
