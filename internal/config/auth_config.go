package config

import (
	"strconv"
	"time"
)

const (
	secretKeyEnvVar     = "AUTH_SECRET_KEY"
	algorithmEnvVar     = "AUTH_SIGNING_ALGORITHM"
	tokenExpiryEnvVar   = "AUTH_TOKEN_EXPIRY_MINUTES"
	expiredPolicyEnvVar = "AUTH_EXPIRED_TOKEN_POLICY"
)

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetSecretKey() string {
	return GetEnv(secretKeyEnvVar, "")
}

func (Auth) GetSigningAlgorithm() string {
	return GetEnv(algorithmEnvVar, "HS256")
}

func (Auth) GetTokenExpiry() time.Duration {
	minutes, err := strconv.Atoi(GetEnv(tokenExpiryEnvVar, "60"))
	if err != nil || minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// ExpiredTokenGrace reports whether the one-shot expiry grace is enabled.
// The default is strict expiry.
func (Auth) ExpiredTokenGrace() bool {
	return GetEnv(expiredPolicyEnvVar, "strict") == "grace"
}
