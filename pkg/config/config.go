// Package config loads the governance core's runtime configuration:
// environment variables with safe defaults first, then an optional YAML
// profile overlay for the artifact root, transport policy, and the
// action-parameter schema map the orchestrator validates EXECUTE
// requests against.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

// Config holds the governance core's runtime configuration.
type Config struct {
	ArtifactRoot      string
	LogLevel          string
	DatabaseURL       string
	RedisAddr         string
	SessionSecret     string
	HTTPSOnly         bool
	TransportEndpoint string
}

// Load reads configuration from environment variables, falling back to
// safe defaults when unset, and validates the result before returning
// it — a non-HTTPS transport endpoint under HTTPSOnly is rejected here,
// at configuration time, rather than surfacing later as a failed
// outbound call.
func Load() (*Config, error) {
	artifactRoot := os.Getenv("GUARDCORE_ARTIFACT_ROOT")
	if artifactRoot == "" {
		artifactRoot = "./artifacts"
	}

	logLevel := os.Getenv("GUARDCORE_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dbURL := os.Getenv("GUARDCORE_DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://guardcore@localhost:5432/guardcore?sslmode=require"
	}

	redisAddr := os.Getenv("GUARDCORE_REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	sessionSecret := os.Getenv("GUARDCORE_SESSION_SECRET")

	httpsOnly := true
	if v := os.Getenv("GUARDCORE_HTTPS_ONLY"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			httpsOnly = parsed
		}
	}

	transportEndpoint := os.Getenv("GUARDCORE_TRANSPORT_ENDPOINT")
	if transportEndpoint == "" {
		transportEndpoint = "https://platform.guardcore.invalid/submissions"
	}

	c := &Config{
		ArtifactRoot:      artifactRoot,
		LogLevel:          logLevel,
		DatabaseURL:       dbURL,
		RedisAddr:         redisAddr,
		SessionSecret:     sessionSecret,
		HTTPSOnly:         httpsOnly,
		TransportEndpoint: transportEndpoint,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects a configuration whose outbound transport endpoint
// does not satisfy HTTPSOnly. Any caller that mutates TransportEndpoint
// or HTTPSOnly after Load (a profile overlay, a flag) must call this
// again before the endpoint is used for anything.
func (c *Config) Validate() error {
	if c.HTTPSOnly && !strings.HasPrefix(c.TransportEndpoint, "https://") {
		return guarderr.New(guarderr.KindConfigurationError,
			"transport endpoint "+c.TransportEndpoint+" is not HTTPS and HTTPSOnly is set")
	}
	return nil
}
