package main

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenlistener/internal/config"
	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/command"
	"github.com/pbinitiative/zenlistener/pkg/listener"
	otelPkg "github.com/pbinitiative/zenlistener/pkg/otel"
	"github.com/pbinitiative/zenlistener/pkg/storage"
	"github.com/pbinitiative/zenlistener/pkg/storage/inmemory"
	"github.com/pbinitiative/zenlistener/pkg/storage/sqlite"
)

func openStorage(conf config.Storage) (storage.Storage, func() error, error) {
	switch conf.Type {
	case config.StorageTypeInMemory:
		return inmemory.NewStorage(), func() error { return nil }, nil
	case config.StorageTypeSqlite:
		store, err := sqlite.Open(conf.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", conf.Type)
	}
}

// newDispatcher registers a message throwing listener for every configured listener.
// Listeners are configured before the dispatcher is handed to the transports.
func newDispatcher(listeners []config.Listener, metrics *otelPkg.ListenerMetrics) (*listener.Dispatcher, error) {
	dispatcher := listener.NewDispatcher()
	for i, l := range listeners {
		types, err := l.EventTypes()
		if err != nil {
			return nil, fmt.Errorf("listener %d: %w", i, err)
		}
		throwing := listener.NewMessageThrowingListener(l.MessageName,
			listener.WithMetrics(metrics),
			listener.WithFilter(listener.Filter{
				Types:      types,
				EntityType: l.EntityType,
				Condition:  l.Condition,
			}),
		)
		dispatcher.Register(throwing, types...)
	}
	return dispatcher, nil
}

// logTriggers reports delivered triggers, continuing the process is left to the engine owning the subscription
func logTriggers() command.TriggerHandler {
	logger := hclog.Default().Named("trigger")
	return command.TriggerHandlerFunc(func(ctx context.Context, trigger runtime.TriggerEvent) {
		logger.Info("event subscription triggered",
			"key", trigger.Subscription.Key,
			"name", trigger.Subscription.EventName,
			"executionId", trigger.Subscription.ExecutionId,
			"processInstanceId", trigger.Subscription.ProcessInstanceId,
			"propagate", trigger.Propagate,
		)
	})
}
