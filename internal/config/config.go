package config

import "time"

type Config interface {
	EnvConfig
	AuthConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

// AuthConfig is the opaque settings value consumed by the session core.
type AuthConfig interface {
	GetSecretKey() string
	GetSigningAlgorithm() string
	GetTokenExpiry() time.Duration
	ExpiredTokenGrace() bool
}

// StoreConfig selects and parameterizes the session store backend.
type StoreConfig interface {
	GetStoreBackend() string
	GetPostgresURI() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type mainConfig struct {
	EnvVars
	Auth
	Store
}

func New() Config {
	return mainConfig{}
}
