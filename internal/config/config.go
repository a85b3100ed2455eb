package config

import "time"

type Config interface {
	EnvConfig
	IdentityConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type IdentityConfig interface {
	GetAPIBaseURL() string
	GetIdentityTimeout() time.Duration
	GetRequestTimeout() time.Duration
}

type StorageConfig interface {
	GetCredentialsFile() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
