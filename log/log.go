package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

func init() {
	level := zapcore.InfoLevel
	if v, ok := os.LookupEnv("COLSTORE_LOG_LEVEL"); ok {
		_ = level.Set(v)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	sugar = logger.Sugar()
}

func Debugf(format string, args ...interface{}) {
	sugar.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	sugar.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	sugar.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	sugar.Errorf(format, args...)
}

func Error(err error) {
	sugar.Error(err)
}

// Panic aborts on invariant violations that registry validation should
// have made unreachable.
func Panic(args ...interface{}) {
	sugar.Panic(args...)
}

func Panicf(format string, args ...interface{}) {
	sugar.Panicf(format, args...)
}
