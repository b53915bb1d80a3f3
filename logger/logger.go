package logger

import (
	"strings"

	"go.uber.org/zap"
)

// New builds a zap logger for mode "production" (or "prod"), or a
// development logger for anything else.
func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

// Mode normalizes a configured log mode, or returns "" if it is unknown.
func Mode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		return "production"
	case "dev", "development":
		return "development"
	default:
		return ""
	}
}
