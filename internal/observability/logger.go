// Package observability holds the process-wide CLI logger.
package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by commands. It is a no-op until
// InitCLILogger runs so packages and tests never need a nil check.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger as a console logger on stderr.
//
// verbose forces debug level; otherwise GOSHEETS_LOG_LEVEL (or info) applies.
func InitCLILogger(name string, verbose bool) {
	level := zapcore.InfoLevel
	if lvl, err := ParseLevel(os.Getenv("GOSHEETS_LOG_LEVEL")); err == nil {
		level = lvl
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	CLILogger = NewCLILogger(name, level)
}

// SetLevel rebuilds CLILogger at the given level name.
func SetLevel(name, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	CLILogger = NewCLILogger(name, lvl)
	return nil
}

// NewCLILogger returns a human-oriented console logger writing to stderr.
func NewCLILogger(name string, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.NameKey = ""
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !isTerminal(os.Stderr) {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core).Named(name)
}

// ParseLevel accepts zap level names in any case. An empty name selects info.
func ParseLevel(s string) (zapcore.Level, error) {
	return zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
