package mzap

import (
	"os"

	"github.com/cedadev/nlds-go/pkg/mlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitializeLogger builds the process-wide zap logger. Encoding and level
// follow ENV_NAME/LOG_LEVEL so production deployments get JSON and
// developer boxes get a readable console encoder.
func InitializeLogger(envName, logLevel string) (mlog.Logger, func()) {
	var cfg zap.Config

	if envName == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg.Level = zap.NewAtomicLevelAt(levelToZap(mlog.ParseLevel(logLevel)))

	z, err := cfg.Build()
	if err != nil {
		// Falling back to a no-op core keeps startup from panicking on a
		// malformed logging config; the process still runs, just silent.
		z = zap.NewNop()
	}

	logger := New(z)

	shutdown := func() {
		_ = logger.Sync()
	}

	return logger, shutdown
}

// MustGetHostname is used to annotate log lines and RPC system_stat replies
// with the running host's name.
func MustGetHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}

	return h
}
