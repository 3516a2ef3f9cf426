package misc

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
)

func LoadEnvSettings(logger *slog.Logger) {
	if err := godotenv.Load(".env.local"); err == nil {
		Debugf(logger, "loaded .env.local")
	}
	if err := godotenv.Load(); err == nil {
		Debugf(logger, "loaded .env")
	}
}

func LoadEnvForNetwork(logger *slog.Logger, network string) {
	envFile := fmt.Sprintf(".env.%s", network)
	if err := godotenv.Load(envFile); err == nil {
		Debugf(logger, "loaded %s", envFile)
	}
}
