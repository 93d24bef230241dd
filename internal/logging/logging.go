// Package logging builds the process-wide structured logger. It is built
// once in main() and threaded explicitly through every component
// constructor rather than reached for as a package-level logger.
package logging

import (
	"go.uber.org/zap"
)

// New builds a production zap logger, or a development one when debug is
// true (human-readable console output instead of JSON).
func New(debug bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Noop returns a logger that discards everything, for tests that don't
// want to assert on log output.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
