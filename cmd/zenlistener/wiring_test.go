package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pbinitiative/zenlistener/internal/config"
	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/command"
	"github.com/pbinitiative/zenlistener/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStorage(t *testing.T) {
	store, closeStore, err := openStorage(config.Storage{Type: config.StorageTypeInMemory})
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.NoError(t, closeStore())

	store, closeStore, err = openStorage(config.Storage{Type: config.StorageTypeSqlite, DSN: filepath.Join(t.TempDir(), "listener.db")})
	require.NoError(t, err)
	assert.NotZero(t, store.GenerateId())
	assert.NoError(t, closeStore())

	_, _, err = openStorage(config.Storage{Type: "redis"})
	assert.Error(t, err)
}

func TestNewDispatcherFromConfig(t *testing.T) {
	// given
	dispatcher, err := newDispatcher([]config.Listener{
		{MessageName: "orderShipped", Events: "ACTIVITY_COMPLETED"},
		{MessageName: "bigPayment", Condition: `priority = "high"`},
	}, nil)
	require.NoError(t, err)
	require.Len(t, dispatcher.Listeners(), 2)

	store, closeStore, err := openStorage(config.Storage{Type: config.StorageTypeInMemory})
	require.NoError(t, err)
	defer closeStore()
	for _, name := range []string{"orderShipped", "bigPayment"} {
		require.NoError(t, store.SaveEventSubscription(context.Background(), runtime.EventSubscription{
			Key:               store.GenerateId(),
			Type:              runtime.MessageSubscriptionType,
			EventName:         name,
			ExecutionId:       "e1",
			ProcessInstanceId: "p1",
			State:             runtime.SubscriptionStateActive,
		}))
	}
	triggered := []string{}
	executor := command.NewExecutor(store, command.WithTriggerHandler(command.TriggerHandlerFunc(
		func(ctx context.Context, trigger runtime.TriggerEvent) {
			triggered = append(triggered, trigger.Subscription.EventName)
		})))

	// when a timer with low priority fires, no listener is relevant
	ev := event.NewEngineEvent(event.TimerFired, "e1", "p1")
	ev.Variables = map[string]any{"priority": "low"}
	err = executor.Execute(context.Background(), "test", func(ctx context.Context, uow command.UnitOfWork) error {
		return dispatcher.DispatchEvent(ctx, uow, ev)
	})

	// then
	require.NoError(t, err)
	assert.Empty(t, triggered)

	// when an activity completes with high priority, both listeners throw
	ev = event.NewEngineEvent(event.ActivityCompleted, "e1", "p1")
	ev.Variables = map[string]any{"priority": "high"}
	err = executor.Execute(context.Background(), "test", func(ctx context.Context, uow command.UnitOfWork) error {
		return dispatcher.DispatchEvent(ctx, uow, ev)
	})

	// then
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orderShipped", "bigPayment"}, triggered)
}

func TestNewDispatcherRejectsUnknownEvents(t *testing.T) {
	_, err := newDispatcher([]config.Listener{{MessageName: "x", Events: "SOMETHING"}}, nil)
	assert.Error(t, err)
}
