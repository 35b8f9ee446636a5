package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	require.NoError(t, Load())

	assert.Equal(t, ":8080", APIAddr())
	assert.Equal(t, "postgres", RemoteBackend())
	assert.Equal(t, "vibrate/changes", RealtimeTopic())
	assert.False(t, SyncOnSave())
	assert.Empty(t, AutoSyncSchedule())
	assert.Equal(t, "field-ingest", IngestUserID())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REMOTE_BACKEND", "DynamoDB")
	t.Setenv("SYNC_ON_SAVE", "true")
	t.Setenv("LOG_LEVEL", "warn")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	require.NoError(t, Load())

	assert.Equal(t, "dynamodb", RemoteBackend())
	assert.True(t, SyncOnSave())
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestLoadRejectsUnknownLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	assert.Error(t, Load())
}
