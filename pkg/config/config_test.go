package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg := fromViper(newTestViper())

	require.Equal(t, EnvDevelopment, cfg.Env)
	require.Equal(t, "/api/v1", cfg.APIPrefix)
	require.Equal(t, SessionStoreMemory, cfg.Sessions.Store)
	require.Equal(t, 2*time.Hour, cfg.Sessions.TTL)
	require.Zero(t, cfg.Sessions.SaveTimeout)
	require.Equal(t, BlobDriverLocal, cfg.Uploads.Driver)
	require.Equal(t, int64(5*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	require.Contains(t, cfg.Uploads.AllowedMIMEs, "image/png")
	require.False(t, cfg.Fees.ClearStatusWhenPaid)
	require.Equal(t, 7*24*time.Hour, cfg.Uploads.Retention)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://school.local/api/")
	t.Setenv("SESSION_STORE", "REDIS")
	t.Setenv("SESSION_SAVE_TIMEOUT", "10s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("LIST_CACHE_TTL", "not-a-duration")

	cfg := fromViper(newTestViper())

	require.Equal(t, "http://school.local/api", cfg.Backend.BaseURL)
	require.Equal(t, SessionStoreRedis, cfg.Sessions.Store)
	require.Equal(t, 10*time.Second, cfg.Sessions.SaveTimeout)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	require.Equal(t, 5*time.Minute, cfg.Lists.CacheTTL)
}

func TestUploadRetentionOutlivesSessions(t *testing.T) {
	t.Setenv("SESSION_TTL", "6h")
	t.Setenv("UPLOADS_RETENTION", "1h")

	cfg := fromViper(newTestViper())

	require.Equal(t, 6*time.Hour, cfg.Sessions.TTL)
	require.Equal(t, 12*time.Hour, cfg.Uploads.Retention)
}
