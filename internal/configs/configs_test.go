package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(name string) string {
		return vars[name]
	}
}

func TestFromEnv_DevelopmentDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8000, cfg.Port)
	assert.NotEmpty(t, cfg.SecretKey)
	assert.Equal(t, 24*time.Hour, cfg.UserAccessTokenLifetime)
	assert.Equal(t, 180*24*time.Hour, cfg.UserRefreshTokenLifetime)
	assert.Equal(t, 6, cfg.VerificationCodeLength)
	assert.Equal(t, 10*time.Minute, cfg.VerificationCodeTTL)
	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.NotEmpty(t, cfg.RedisURL)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.False(t, cfg.PinpointEnabled())
	assert.False(t, cfg.StorageEnabled())
}

func TestFromEnv_Production(t *testing.T) {
	base := map[string]string{
		"ENVIRONMENT":         "production",
		"SECRET_KEY":          "s3cr3t",
		"DATABASE_URL":        "postgres://db/flipside",
		"REDIS_URL":           "redis://cache:6379/0",
		"PINPOINT_PROJECT_ID": "project",
		"ALLOWED_ORIGINS":     "https://a.example, https://b.example ,",
	}

	t.Run("Success", func(t *testing.T) {
		cfg, err := FromEnv(envOf(base))
		require.NoError(t, err)
		assert.False(t, cfg.IsDevelopment())
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
		assert.Equal(t, "TRANSACTIONAL", cfg.PinpointMessageType)
	})

	for _, missing := range []string{"SECRET_KEY", "DATABASE_URL", "REDIS_URL", "PINPOINT_PROJECT_ID"} {
		t.Run("Error_Missing_"+missing, func(t *testing.T) {
			vars := map[string]string{}
			for k, v := range base {
				vars[k] = v
			}
			delete(vars, missing)

			_, err := FromEnv(envOf(vars))
			assert.ErrorContains(t, err, missing)
		})
	}
}

func TestFromEnv_InvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"port not a number":       {"PORT": "abc"},
		"privileged port":         {"PORT": "80"},
		"bad access lifetime":     {"USER_ACCESS_TOKEN_LIFETIME": "soon"},
		"negative refresh":        {"USER_REFRESH_TOKEN_LIFETIME": "-1h"},
		"short code":              {"VERIFICATION_CODE_LENGTH": "2"},
		"bad ttl":                 {"VERIFICATION_CODE_TTL": "ten"},
		"bucket without key pair": {"S3_BUCKET_NAME": "photos"},
	}

	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envOf(vars))
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"PORT":                       "9000",
		"USER_ACCESS_TOKEN_LIFETIME": "15m",
		"VERIFICATION_CODE_LENGTH":   "8",
		"VERIFICATION_CODE_TTL":      "90s",
		"S3_BUCKET_NAME":             "photos",
		"AWS_ACCESS_KEY_ID":          "id",
		"AWS_SECRET_ACCESS_KEY":      "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.UserAccessTokenLifetime)
	assert.Equal(t, 8, cfg.VerificationCodeLength)
	assert.Equal(t, 90*time.Second, cfg.VerificationCodeTTL)
	assert.True(t, cfg.StorageEnabled())
}
