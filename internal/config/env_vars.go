package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	appNameVar          = "APP_NAME"
	baseURLVar          = "API_BASE_URL"
	identityTimeoutVar  = "IDENTITY_TIMEOUT"
	requestTimeoutVar   = "REQUEST_TIMEOUT"
	credentialsFileVar  = "CREDENTIALS_FILE"
	logLevelVar         = "LOG_LEVEL"
	defaultBaseURL      = "http://localhost:5000/api"
	defaultCredsFile    = ".expensa-credentials.json"
	defaultIdentityWait = 10 * time.Second
	defaultRequestWait  = 30 * time.Second
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}
var _ IdentityConfig = EnvVars{}
var _ StorageConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Expensa Client")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetAPIBaseURL returns the base URL for the platform API
// (e.g., "https://api.expensa.example.com/api")
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(baseURLVar, defaultBaseURL)
}

// GetIdentityTimeout bounds the identity-service calls (login, refresh, logout)
func (EnvVars) GetIdentityTimeout() time.Duration {
	return getDuration(identityTimeoutVar, defaultIdentityWait)
}

// GetRequestTimeout bounds ordinary authorized API calls
func (EnvVars) GetRequestTimeout() time.Duration {
	return getDuration(requestTimeoutVar, defaultRequestWait)
}

// GetCredentialsFile returns the path of the durable credential store.
// Defaults to a dotfile in the user's home directory.
func (EnvVars) GetCredentialsFile() string {
	if path := os.Getenv(credentialsFileVar); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultCredsFile
	}
	return filepath.Join(home, defaultCredsFile)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
