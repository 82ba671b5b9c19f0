package support

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("online defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/streams")
		t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

		cfg, err := LoadConfig()
		if !assert.Nil(t, err) {
			return
		}

		assert.Equal(t, Online, cfg.Mode)
		assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, []string{"events"}, cfg.Topics())
		assert.Equal(t, 10*time.Second, cfg.OffsetSyncInterval)
		assert.Equal(t, 100, cfg.RelayBatchSize)
	})

	t.Run("restore requires consumer groups", func(t *testing.T) {
		t.Setenv("MODE", "restore")
		t.Setenv("DATABASE_URL", "postgres://localhost/streams")
		t.Setenv("KAFKA_BROKERS", "a:9092")

		_, err := LoadConfig()
		assert.NotNil(t, err)

		t.Setenv("ONLINE_CONSUMER_GROUP", "jobs")
		t.Setenv("RESTORE_CONSUMER_GROUP", "jobs-restore")
		t.Setenv("KAFKA_TOPICS", "jobs,tasks")
		t.Setenv("OFFSET_SYNC_INTERVAL", "2s")

		cfg, err := LoadConfig()
		if !assert.Nil(t, err) {
			return
		}
		assert.Equal(t, []string{"jobs", "tasks"}, cfg.Topics())
		assert.Equal(t, 2*time.Second, cfg.OffsetSyncInterval)
	})

	t.Run("unknown modes are rejected", func(t *testing.T) {
		t.Setenv("MODE", "batch")
		_, err := LoadConfig()
		assert.NotNil(t, err)
	})
}

func TestLogger(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger(Config{Mode: Restore, LogLevel: "warn"}, &out)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"mode":"restore"`)
}
