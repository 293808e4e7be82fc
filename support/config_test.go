package support

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 9080, cfg.Port)
		assert.Equal(t, SQLiteBackend, cfg.Store)
		assert.Equal(t, "wee-events", cfg.DynamoTable)
		assert.Equal(t, NoTraces, cfg.Traces)
	})

	t.Run("reads the environment", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		t.Setenv("WE_STORE", "jetstream")
		t.Setenv("NATS_STREAM", "accounts")
		t.Setenv("JWT_SECRET", "shh")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, JetStreamBackend, cfg.Store)
		assert.Equal(t, "accounts", cfg.NatsStream)
		assert.Equal(t, "shh", cfg.JWTSecret)
	})

	t.Run("rejects unknown stores", func(t *testing.T) {
		t.Setenv("WE_STORE", "postgres")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("honeycomb needs a team", func(t *testing.T) {
		t.Setenv("WE_TRACES", "honeycomb")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		t.Setenv("PORT", "eighty")

		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestConfigureLogging(t *testing.T) {
	previous := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(previous) })

	require.NoError(t, ConfigureLogging(Config{LogLevel: "warn"}))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	assert.Error(t, ConfigureLogging(Config{LogLevel: "chatty"}))
}
