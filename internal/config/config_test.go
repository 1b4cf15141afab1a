package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pbinitiative/zenlistener/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "conf.yaml")
	err := os.WriteFile(fileName, []byte(`
name: test-listener
httpServer:
  addr: ":9090"
storage:
  type: sqlite
  dsn: "file:test.db"
listeners:
  - messageName: orderShipped
    events: ACTIVITY_COMPLETED,TIMER_FIRED
  - messageName: paymentReceived
    condition: 'amount > 100'
`), 0o600)
	require.NoError(t, err)

	c, err := Load(fileName)
	require.NoError(t, err)

	assert.Equal(t, "test-listener", c.Name)
	assert.Equal(t, ":9090", c.HttpServer.Addr)
	assert.Equal(t, StorageTypeSqlite, c.Storage.Type)
	assert.Equal(t, "engine-events", c.Transport.Topic)
	assert.Equal(t, "engine-events-poison", c.Transport.PoisonTopic)
	assert.Equal(t, 5, c.Transport.MaxRetries)
	require.Len(t, c.Listeners, 2)
	types, err := c.Listeners[0].EventTypes()
	require.NoError(t, err)
	assert.Equal(t, []event.Type{event.ActivityCompleted, event.TimerFired}, types)
	assert.Equal(t, "amount > 100", c.Listeners[1].Condition)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REST_API_ADDR", ":7070")
	t.Setenv("STORAGE_TYPE", "inmemory")

	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", c.HttpServer.Addr)
	assert.Equal(t, StorageTypeInMemory, c.Storage.Type)
	assert.Equal(t, "zenlistener", c.Name)
	assert.Empty(t, c.Listeners)
}

func TestValidate(t *testing.T) {
	c := Config{
		Storage: Storage{Type: "postgres"},
		Listeners: []Listener{
			{MessageName: ""},
			{MessageName: "ok", Events: "NOPE"},
			{MessageName: "ok"},
			{MessageName: "typo", Condition: `priority = ("high"`},
			{MessageName: "fine", Condition: `priority = "high"`},
		},
	}

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.Contains(t, err.Error(), "messageName must be set")
	assert.Contains(t, err.Error(), "NOPE")
	assert.Contains(t, err.Error(), "messageName ok is already thrown by listener 1")
	assert.Contains(t, err.Error(), "listener 3: invalid condition")
	assert.NotContains(t, err.Error(), "listener 4")
}

func TestValidateRejectsNegativeRetries(t *testing.T) {
	c := Config{Storage: Storage{Type: StorageTypeInMemory}, Transport: Transport{MaxRetries: -1}}

	assert.ErrorContains(t, c.Validate(), "maxRetries")
}
