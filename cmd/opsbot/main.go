package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/bdobrica/opsbot/common/version"
	"github.com/bdobrica/opsbot/internal/opsbot/app"
	"github.com/bdobrica/opsbot/internal/opsbot/matrix"
	"github.com/bdobrica/opsbot/internal/opsbot/observability"
)

func main() {
	fmt.Printf("opsbot %s\n\n", version.Info())

	observability.Setup(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "text"))

	config := loadConfig()

	// Validate required configuration
	if config.Matrix.Homeserver == "" {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_HOMESERVER is required\n")
		os.Exit(1)
	}
	if config.Matrix.UserID == "" {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_USER_ID is required\n")
		os.Exit(1)
	}
	if config.Matrix.AccessToken == "" {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_ACCESS_TOKEN is required\n")
		os.Exit(1)
	}
	if len(config.Matrix.Rooms) == 0 {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_ROOMS is required\n")
		os.Exit(1)
	}

	bot, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize opsbot: %v\n", err)
		os.Exit(1)
	}
	defer bot.Stop()

	if err := bot.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running opsbot: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from environment variables
func loadConfig() *app.Config {
	return &app.Config{
		DatabasePath:   getEnv("DATABASE_PATH", "./opsbot.db"),
		BotConfigPath:  getEnv("BOT_CONFIG_PATH", ""),
		EnableDocker:   getEnv("ENABLE_DOCKER", "") == "true",
		DockerNetwork:  getEnv("DOCKER_NETWORK", ""),
		AllowedSenders: splitList(getEnv("ALLOWED_SENDERS", "")),
		Matrix: matrix.Config{
			Homeserver:  getEnv("MATRIX_HOMESERVER", ""),
			UserID:      getEnv("MATRIX_USER_ID", ""),
			AccessToken: getEnv("MATRIX_ACCESS_TOKEN", ""),
			Rooms:       splitList(getEnv("MATRIX_ROOMS", "")),
		},
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList parses a comma-separated env value, trimming whitespace.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
