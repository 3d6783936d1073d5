package seglist

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger   *zap.SugaredLogger
)

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = logLevel
	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	logger = base.Sugar()
}

// SetLogLevel adjusts the package-wide logging level
func SetLogLevel(level zapcore.Level) {
	logLevel.SetLevel(level)
}

// Debug logs debug information
func Debug(format string, v ...interface{}) {
	logger.Debugf(format, v...)
}

// Info logs info information
func Info(format string, v ...interface{}) {
	logger.Infof(format, v...)
}

// Error logs error information
func Error(format string, v ...interface{}) {
	logger.Errorf(format, v...)
}

// Fatal logs fatal information and exits
func Fatal(format string, v ...interface{}) {
	logger.Fatalf(format, v...)
}
