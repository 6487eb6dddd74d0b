package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Database.URL)
	assert.Positive(t, cfg.Database.MaxOpenConns)
	assert.NotEmpty(t, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "RepuestosAuto", cfg.Payment.StatementDescriptor)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "7")
	t.Setenv("MP_TIMEOUT", "2s")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092")
	t.Setenv("PAYMENT_PROVIDER", "mercadopago")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 7, cfg.Database.MaxOpenConns)
	assert.Equal(t, 2*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "mercadopago", cfg.Payment.Provider)
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("DATABASE_MAX_IDLE_CONNS", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b,"))
	assert.Empty(t, splitCSV(" , "))
}
