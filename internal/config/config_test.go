package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivechat/internal/config"
)

func TestLoadClient(t *testing.T) {
	t.Run("MissingToken", func(t *testing.T) {
		t.Setenv("HIVECHAT_TOKEN", "")
		t.Setenv("HIVECHAT_USER_ID", "u1")
		_, err := config.LoadClient()
		assert.Error(t, err)
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("HIVECHAT_TOKEN", "tok")
		t.Setenv("HIVECHAT_USER_ID", "u1")
		t.Setenv("HIVECHAT_API_URL", "")
		t.Setenv("HIVECHAT_TYPING_TIMEOUT", "")

		cfg, err := config.LoadClient()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/api/v1", cfg.APIURL)
		assert.Equal(t, 3*time.Second, cfg.TypingTimeout)
		assert.Equal(t, 512, cfg.LinkTableSize)
		assert.False(t, cfg.ObjectStoreEnabled())
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("HIVECHAT_TOKEN", "tok")
		t.Setenv("HIVECHAT_USER_ID", "u1")
		t.Setenv("HIVECHAT_API_URL", "https://api.example.com/v1/")
		t.Setenv("HIVECHAT_TYPING_TIMEOUT", "1500ms")
		t.Setenv("HIVECHAT_MODERATOR_IDS", " a, b ,,")
		t.Setenv("HIVECHAT_S3_BUCKET", "files")

		cfg, err := config.LoadClient()
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/v1", cfg.APIURL)
		assert.Equal(t, 1500*time.Millisecond, cfg.TypingTimeout)
		assert.Equal(t, []string{"a", "b"}, cfg.ModeratorIDs)
		assert.True(t, cfg.ObjectStoreEnabled())
	})

	t.Run("BadSocketScheme", func(t *testing.T) {
		t.Setenv("HIVECHAT_TOKEN", "tok")
		t.Setenv("HIVECHAT_USER_ID", "u1")
		t.Setenv("HIVECHAT_SOCKET_URL", "http://localhost/ws")
		_, err := config.LoadClient()
		assert.Error(t, err)
	})
}

func TestLoadSandbox(t *testing.T) {
	t.Setenv("SANDBOX_JWT_SECRET", "")
	_, err := config.LoadSandbox()
	assert.Error(t, err)

	t.Setenv("SANDBOX_JWT_SECRET", "s3cret")
	t.Setenv("SANDBOX_PORT", "9090")
	cfg, err := config.LoadSandbox()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTPAddr())
	assert.Len(t, cfg.CORSOrigins, 2)
}
