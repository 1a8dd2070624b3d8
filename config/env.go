package config

import (
	"log"
	"os"
	"time"
)

// Settings are the process-level options read from the environment.
type Settings struct {
	ConfigPath   string
	HTTPAddr     string
	ScanInterval time.Duration

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// LoadSettings reads Settings from environment variables.
func LoadSettings() Settings {
	return Settings{
		ConfigPath:   getEnv("HUB_CONFIG", "configuration.yaml"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		ScanInterval: getEnvDuration("SCAN_INTERVAL", 30*time.Second),

		InfluxURL:    getEnv("INFLUX_URL", ""),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", ""),
		InfluxBucket: getEnv("INFLUX_BUCKET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Invalid %s %q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
