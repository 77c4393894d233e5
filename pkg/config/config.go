package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort         string
	Environment        string
	FirebaseProject    string
	ServiceAccountPath string
	ServiceAccountJSON string
	StorageBucket      string
	SessionIDToken     string
	RealtimeURL        string

	PageSize              int
	TypingTimeout         time.Duration
	TypingThrottle        time.Duration
	HeartbeatInterval     time.Duration
	RequestTimeout        time.Duration
	ResubscribeMaxBackoff time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8787"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		FirebaseProject:    getEnv("FIREBASE_PROJECT_ID", ""),
		ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		ServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		StorageBucket:      getEnv("STORAGE_BUCKET", ""),
		SessionIDToken:     getEnv("SESSION_ID_TOKEN", ""),
		RealtimeURL:        getEnv("REALTIME_URL", ""),

		PageSize:              int(getEnvAsInt64("PAGE_SIZE", 25)),
		TypingTimeout:         getEnvAsDuration("TYPING_TIMEOUT", 2*time.Second),
		TypingThrottle:        getEnvAsDuration("TYPING_THROTTLE", 2*time.Second),
		HeartbeatInterval:     getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		RequestTimeout:        getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		ResubscribeMaxBackoff: getEnvAsDuration("RESUBSCRIBE_MAX_BACKOFF", 30*time.Second),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.FirebaseProject == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}
	if c.RealtimeURL == "" {
		return fmt.Errorf("REALTIME_URL is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
