package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Amund211/canchas/internal/config"
)

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

var requiredOutsideDevelopment = []string{"ATC_BASE_URL", "SENTRY_DSN"}
var optionalVariables = []string{"DB_CONNECTION_STRING", "REDIS_URL", "RABBIT_URL", "GOOGLE_CLOUD_PROJECT"}

func TestGetConfig(t *testing.T) {
	compareConfig := func(atcBaseURL, sentryDSN, optional string, env environment, conf config.Config) {
		t.Helper()
		require.Equal(t, atcBaseURL, conf.ATCBaseURL())
		require.Equal(t, sentryDSN, conf.SentryDSN())
		require.Equal(t, optional, conf.DBConnectionString())
		require.Equal(t, optional, conf.RedisURL())
		require.Equal(t, optional, conf.RabbitURL())
		require.Equal(t, optional, conf.GoogleCloudProject())
		require.Equal(t, env == production, conf.IsProduction())
		require.Equal(t, env == staging, conf.IsStaging())
		require.Equal(t, env == development, conf.IsDevelopment())
	}

	t.Run("ensure base environment is clean", func(t *testing.T) {
		t.Run("environment is missing", func(t *testing.T) {
			// CANCHAS_ENVIRONMENT is required, so this should fail
			_, err := config.ConfigFromEnv()
			require.ErrorIs(t, err, config.ErrMissingRequiredValue)
		})

		t.Run("development environment should use defaults", func(t *testing.T) {
			t.Setenv("CANCHAS_ENVIRONMENT", "development")

			conf, err := config.ConfigFromEnv()
			require.NoError(t, err)
			compareConfig("", "", "", development, conf)
			require.Equal(t, "3000", conf.Port())
			require.Equal(t, 60, conf.UpstreamRequestsPerMinute())
		})
	})

	t.Run("values are read correctly", func(t *testing.T) {
		t.Setenv("ATC_BASE_URL", "ATC_BASE_URL")
		t.Setenv("SENTRY_DSN", "SENTRY_DSN")
		for _, variable := range optionalVariables {
			t.Setenv(variable, "optional")
		}
		t.Setenv("PORT", "8080")
		t.Setenv("UPSTREAM_REQUESTS_PER_MINUTE", "120")

		for _, env := range []environment{production, staging, development} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("CANCHAS_ENVIRONMENT", string(env))

				conf, err := config.ConfigFromEnv()
				require.NoError(t, err)
				compareConfig("ATC_BASE_URL", "SENTRY_DSN", "optional", env, conf)
				require.Equal(t, "8080", conf.Port())
				require.Equal(t, 120, conf.UpstreamRequestsPerMinute())
				require.Equal(t, string(env), conf.Environment())
				require.NotContains(t, conf.NonSensitiveString(), "SENTRY_DSN")
			})
		}
	})

	t.Run("production and staging fail when missing variables", func(t *testing.T) {
		for _, variable := range requiredOutsideDevelopment {
			t.Setenv(variable, "placeholder_value")
		}

		for _, env := range []environment{production, staging} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("CANCHAS_ENVIRONMENT", string(env))

				_, err := config.ConfigFromEnv()
				require.NoError(t, err, "optional variables may be missing")

				for _, variable := range requiredOutsideDevelopment {
					t.Run(variable, func(t *testing.T) {
						t.Setenv(variable, "")

						_, err := config.ConfigFromEnv()
						require.ErrorIs(t, err, config.ErrMissingRequiredValue)
					})
				}
			})
		}
	})

	t.Run("invalid upstream requests per minute", func(t *testing.T) {
		t.Setenv("CANCHAS_ENVIRONMENT", "development")

		for _, value := range []string{"0", "-1", "sixty"} {
			t.Run(value, func(t *testing.T) {
				t.Setenv("UPSTREAM_REQUESTS_PER_MINUTE", value)
				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})

	t.Run("invalid environment", func(t *testing.T) {
		for _, env := range []string{"", "invalid", "my-env"} {
			t.Run(env, func(t *testing.T) {
				t.Setenv("CANCHAS_ENVIRONMENT", env)
				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})
}
