package config

import (
	"os"
	"strconv"

	"go.uber.org/zap"
)

func GetEnv(key, defaultVal string, log *zap.Logger) string {
	log = envLogger(key, log)
	val, ok := os.LookupEnv(key)
	if !ok {
		log.Debug("Environment variable not found, using default", zap.String("default", defaultVal))
		return defaultVal
	}
	log.Debug("Environment variable found, using environment", zap.String("environment", val))
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *zap.Logger) int {
	log = envLogger(key, log)
	valStr, ok := os.LookupEnv(key)
	if !ok {
		log.Debug("Environment variable not found, using default", zap.Int("default", defaultVal))
		return defaultVal
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		log.Warn("Environment variable could not be parsed as int, using default",
			zap.String("provided", valStr), zap.Int("default", defaultVal), zap.Error(err))
		return defaultVal
	}
	log.Debug("Environment variable found, using it", zap.Int("value", i))
	return i
}

func GetEnvAsBool(key string, defaultVal bool, log *zap.Logger) bool {
	log = envLogger(key, log)
	valStr, ok := os.LookupEnv(key)
	if !ok {
		log.Debug("Environment variable not found, using default", zap.Bool("default", defaultVal))
		return defaultVal
	}
	b, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Warn("Environment variable could not be parsed as bool, using default",
			zap.String("provided", valStr), zap.Bool("default", defaultVal), zap.Error(err))
		return defaultVal
	}
	log.Debug("Environment variable found, using it", zap.Bool("value", b))
	return b
}

func envLogger(key string, log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log.With(zap.String("env_var", key))
}
