package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var keys = []string{
	"HTTP_ADDRESS", "STORE_BACKEND", "POSTGRES_URL", "KAFKA_BROKERS", "HABIT_EVENTS_TOPIC",
	"EVENT_PUBLISH_TIMEOUT", "TIMEZONE", "SEED_SAMPLE_DATA", "LOG_LEVEL", "LOG_FORMAT",
	"CORS_ALLOWED_ORIGIN", "SHUTDOWN_TIMEOUT",
}

// clearEnv blanks every key for the test; getEnv treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, BackendMemory, cfg.StoreBackend)
	require.Empty(t, cfg.KafkaBrokers)
	require.False(t, cfg.EventsEnabled())
	require.Equal(t, "habit_events", cfg.HabitEventsTopic)
	require.True(t, cfg.SeedSampleData)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, "http://localhost:5173", cfg.CORSAllowedOrigin)
	require.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, time.Local, cfg.Location)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("SEED_SAMPLE_DATA", "false")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("EVENT_PUBLISH_TIMEOUT", "not-a-duration")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, BackendPostgres, cfg.StoreBackend)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.EventsEnabled())
	require.Equal(t, "Europe/Berlin", cfg.Location.String())
	require.False(t, cfg.SeedSampleData)
	require.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, 2*time.Second, cfg.PublishTimeout)
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that are already present.
	require.NoError(t, os.Unsetenv("HABIT_EVENTS_TOPIC"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HABIT_EVENTS_TOPIC=habits.v1\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("HABIT_EVENTS_TOPIC") })

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "habits.v1", cfg.HabitEventsTopic)
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "sqlite")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorContains(t, err, "STORE_BACKEND")

	cfg := Config{StoreBackend: BackendMemory, LogFormat: "text", Timezone: "Mars/Olympus"}
	require.ErrorContains(t, cfg.Validate(), "TIMEZONE")

	cfg = Config{StoreBackend: BackendMemory, LogFormat: "xml", Timezone: "UTC"}
	require.ErrorContains(t, cfg.Validate(), "LOG_FORMAT")
}
