// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// Package command runs work against the storage inside an explicit unit of work.
//
// A unit of work stages every write in a storage batch. The batch is flushed when the
// command returns without error and cleared otherwise. Trigger handlers are notified
// only after a successful flush.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrAlreadyTriggered = errors.New("event subscription is not active")

// UnitOfWork gives consistent access to event subscriptions for the duration of one command
type UnitOfWork interface {
	// FindEventSubscriptionsByNameAndExecution returns an empty slice when nothing matches
	FindEventSubscriptionsByNameAndExecution(ctx context.Context, subscriptionType runtime.SubscriptionType, eventName string, executionId string) ([]runtime.EventSubscription, error)

	// TriggerEventSubscription delivers payload to the subscription
	TriggerEventSubscription(ctx context.Context, subscription runtime.EventSubscription, payload any, propagate bool) error
}

// Func is the body of a command
type Func func(ctx context.Context, uow UnitOfWork) error

// TriggerHandler continues the execution waiting on a triggered subscription.
// It is called after the unit of work that triggered the subscription was flushed.
type TriggerHandler interface {
	HandleTrigger(ctx context.Context, trigger runtime.TriggerEvent)
}

type TriggerHandlerFunc func(ctx context.Context, trigger runtime.TriggerEvent)

func (f TriggerHandlerFunc) HandleTrigger(ctx context.Context, trigger runtime.TriggerEvent) {
	f(ctx, trigger)
}

type Executor struct {
	persistence storage.Storage
	handlers    []TriggerHandler
	logger      hclog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

type ExecutorOption = func(*Executor)

func NewExecutor(persistence storage.Storage, options ...ExecutorOption) *Executor {
	executor := Executor{
		persistence: persistence,
		handlers:    []TriggerHandler{},
		logger:      hclog.Default().Named("command-executor"),
		tracer:      otel.Tracer("zenlistener/command"),
		now:         time.Now,
	}
	for _, option := range options {
		option(&executor)
	}
	return &executor
}

func WithTriggerHandler(handler TriggerHandler) ExecutorOption {
	return func(executor *Executor) {
		executor.handlers = append(executor.handlers, handler)
	}
}

func WithLogger(logger hclog.Logger) ExecutorOption {
	return func(executor *Executor) {
		executor.logger = logger
	}
}

func WithClock(now func() time.Time) ExecutorOption {
	return func(executor *Executor) {
		executor.now = now
	}
}

// Execute runs fn in a new unit of work. An error returned by fn is returned unchanged.
func (e *Executor) Execute(ctx context.Context, name string, fn Func) (err error) {
	ctx, span := e.tracer.Start(ctx, "command:"+name)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	uow := &unitOfWork{
		batch:     e.persistence.NewBatch(),
		now:       e.now,
		triggered: map[int64]struct{}{},
		triggers:  []runtime.TriggerEvent{},
	}
	err = fn(ctx, uow)
	if err != nil {
		uow.batch.Clear(ctx)
		return err
	}
	err = uow.batch.Flush(ctx)
	if err != nil {
		uow.batch.Clear(ctx)
		return fmt.Errorf("failed to flush unit of work of command %s: %w", name, err)
	}
	span.SetAttributes(attribute.Int("triggered-subscriptions", len(uow.triggers)))

	for _, trigger := range uow.triggers {
		for _, handler := range e.handlers {
			handler.HandleTrigger(ctx, trigger)
		}
	}
	return nil
}

type unitOfWork struct {
	batch     storage.Batch
	now       func() time.Time
	triggered map[int64]struct{}
	triggers  []runtime.TriggerEvent
}

var _ UnitOfWork = &unitOfWork{}

func (u *unitOfWork) FindEventSubscriptionsByNameAndExecution(ctx context.Context, subscriptionType runtime.SubscriptionType, eventName string, executionId string) ([]runtime.EventSubscription, error) {
	return u.batch.FindEventSubscriptionsByNameAndExecution(ctx, subscriptionType, eventName, executionId)
}

func (u *unitOfWork) TriggerEventSubscription(ctx context.Context, subscription runtime.EventSubscription, payload any, propagate bool) error {
	if subscription.GetState() != runtime.SubscriptionStateActive {
		return fmt.Errorf("subscription %d in state %s: %w", subscription.GetKey(), subscription.GetState(), ErrAlreadyTriggered)
	}
	if _, ok := u.triggered[subscription.GetKey()]; ok {
		return fmt.Errorf("subscription %d was already triggered in this unit of work: %w", subscription.Key, ErrAlreadyTriggered)
	}
	triggeredAt := u.now()
	subscription.State = runtime.SubscriptionStateTriggered
	subscription.TriggeredAt = &triggeredAt
	subscription.Payload = payload
	if err := u.batch.SaveEventSubscription(ctx, subscription); err != nil {
		return fmt.Errorf("failed to save triggered subscription %d: %w", subscription.Key, err)
	}
	u.triggered[subscription.Key] = struct{}{}
	u.triggers = append(u.triggers, runtime.TriggerEvent{
		Subscription: subscription,
		Payload:      payload,
		Propagate:    propagate,
		TriggeredAt:  triggeredAt,
	})
	return nil
}
