package listener_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/command"
	"github.com/pbinitiative/zenlistener/pkg/event"
	"github.com/pbinitiative/zenlistener/pkg/listener"
	"github.com/pbinitiative/zenlistener/pkg/storage"
	"github.com/pbinitiative/zenlistener/pkg/storage/inmemory"
	"github.com/pbinitiative/zenlistener/pkg/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storages(t *testing.T) map[string]storage.Storage {
	sqliteStore, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })
	return map[string]storage.Storage{
		"inmemory": inmemory.NewStorage(),
		"sqlite":   sqliteStore,
	}
}

func subscribe(t *testing.T, s storage.Storage, name string, executionId string, processInstanceId string) runtime.EventSubscription {
	sub := runtime.EventSubscription{
		Key:               s.GenerateId(),
		Type:              runtime.MessageSubscriptionType,
		EventName:         name,
		ExecutionId:       executionId,
		ProcessInstanceId: processInstanceId,
		State:             runtime.SubscriptionStateActive,
	}
	require.NoError(t, s.SaveEventSubscription(t.Context(), sub))
	return sub
}

func dispatch(ctx context.Context, executor *command.Executor, dispatcher *listener.Dispatcher, ev event.Event) error {
	return executor.Execute(ctx, "dispatch-event", func(ctx context.Context, uow command.UnitOfWork) error {
		return dispatcher.DispatchEvent(ctx, uow, ev)
	})
}

func Test_message_is_thrown_to_execution_and_then_to_process_instance(t *testing.T) {
	for name, store := range storages(t) {
		t.Run(name, func(t *testing.T) {
			// given
			execSub := subscribe(t, store, "orderShipped", "e1", "p1")
			rootSub := subscribe(t, store, "orderShipped", "p1", "p1")

			handled := []int64{}
			executor := command.NewExecutor(store, command.WithTriggerHandler(command.TriggerHandlerFunc(
				func(ctx context.Context, trigger runtime.TriggerEvent) {
					handled = append(handled, trigger.Subscription.Key)
				})))
			dispatcher := listener.NewDispatcher()
			dispatcher.Register(listener.NewMessageThrowingListener("orderShipped"), event.ActivityCompleted)

			// when
			err := dispatch(t.Context(), executor, dispatcher, event.NewEngineEvent(event.ActivityCompleted, "e1", "p1"))

			// then
			require.NoError(t, err)
			assert.Equal(t, []int64{execSub.Key}, handled)
			stored, err := store.FindEventSubscriptionByKey(t.Context(), rootSub.Key)
			require.NoError(t, err)
			assert.Equal(t, runtime.SubscriptionStateActive, stored.State)

			// when the execution subscription was consumed, the process instance is messaged
			err = dispatch(t.Context(), executor, dispatcher, event.NewEngineEvent(event.ActivityCompleted, "e1", "p1"))

			// then
			require.NoError(t, err)
			assert.Equal(t, []int64{execSub.Key, rootSub.Key}, handled)

			// when nothing is left
			err = dispatch(t.Context(), executor, dispatcher, event.NewEngineEvent(event.ActivityCompleted, "e1", "p1"))

			// then
			require.NoError(t, err)
			assert.Len(t, handled, 2)
		})
	}
}

func Test_invalid_scope_aborts_the_unit_of_work(t *testing.T) {
	for name, store := range storages(t) {
		t.Run(name, func(t *testing.T) {
			// given
			sub := subscribe(t, store, "orderShipped", "e1", "p1")
			dispatcher := listener.NewDispatcher()
			dispatcher.Register(listener.NewMessageThrowingListener("orderShipped"))
			executor := command.NewExecutor(store)

			// when
			err := dispatch(t.Context(), executor, dispatcher, event.NewEngineEvent(event.ActivityCompleted, "e1", ""))

			// then
			assert.ErrorIs(t, err, listener.ErrInvalidScope)
			stored, err := store.FindEventSubscriptionByKey(t.Context(), sub.Key)
			require.NoError(t, err)
			assert.Equal(t, runtime.SubscriptionStateActive, stored.State)
		})
	}
}
