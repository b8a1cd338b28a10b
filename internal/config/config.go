package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const (
	defaultPort                      = "3000"
	defaultUpstreamRequestsPerMinute = 60
)

type Config struct {
	port                      string
	atcBaseURL                string
	upstreamRequestsPerMinute int
	sentryDSN                 string
	dbConnectionString        string
	redisURL                  string
	rabbitURL                 string
	googleCloudProject        string
	env                       environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) ATCBaseURL() string {
	return c.atcBaseURL
}

func (c *Config) UpstreamRequestsPerMinute() int {
	return c.upstreamRequestsPerMinute
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

// Empty when the event journal should be kept in memory
func (c *Config) DBConnectionString() string {
	return c.dbConnectionString
}

// Empty when upstream stats should not be recorded
func (c *Config) RedisURL() string {
	return c.redisURL
}

// Empty when events are only received over HTTP
func (c *Config) RabbitURL() string {
	return c.rabbitURL
}

func (c *Config) GoogleCloudProject() string {
	return c.googleCloudProject
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, atcBaseURL: %s, upstreamRequestsPerMinute: %d, db: %t, redis: %t, rabbit: %t, ...}",
		string(c.env),
		c.port,
		c.atcBaseURL,
		c.upstreamRequestsPerMinute,
		c.dbConnectionString != "",
		c.redisURL != "",
		c.rabbitURL != "",
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("CANCHAS_ENVIRONMENT")
	if !ok {
		return missingKey("CANCHAS_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: CANCHAS_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	upstreamRequestsPerMinute := defaultUpstreamRequestsPerMinute
	if raw := os.Getenv("UPSTREAM_REQUESTS_PER_MINUTE"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("%w: UPSTREAM_REQUESTS_PER_MINUTE (%s)", ErrInvalidValue, raw)
		}
		upstreamRequestsPerMinute = parsed
	}

	atcBaseURL := os.Getenv("ATC_BASE_URL")
	sentryDSN := os.Getenv("SENTRY_DSN")
	dbConnectionString := os.Getenv("DB_CONNECTION_STRING")
	redisURL := os.Getenv("REDIS_URL")
	rabbitURL := os.Getenv("RABBIT_URL")
	googleCloudProject := os.Getenv("GOOGLE_CLOUD_PROJECT")

	if env == production || env == staging {
		if atcBaseURL == "" {
			return missingKey("ATC_BASE_URL")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	return Config{
		port:                      port,
		atcBaseURL:                atcBaseURL,
		upstreamRequestsPerMinute: upstreamRequestsPerMinute,
		sentryDSN:                 sentryDSN,
		dbConnectionString:        dbConnectionString,
		redisURL:                  redisURL,
		rabbitURL:                 rabbitURL,
		googleCloudProject:        googleCloudProject,
		env:                       env,
	}, nil
}
