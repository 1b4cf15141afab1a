// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package listener

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/command"
	"github.com/pbinitiative/zenlistener/pkg/event"
	otelPkg "github.com/pbinitiative/zenlistener/pkg/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MessageThrowingListener throws a message to the execution the event was fired from.
// If the execution is not subscribed to the message, the process instance is messaged instead.
type MessageThrowingListener struct {
	messageName string
	filter      Filter
	metrics     *otelPkg.ListenerMetrics
	logger      hclog.Logger
	tracer      trace.Tracer
}

const listenerKind = "message-throwing"

var _ EventListener = &MessageThrowingListener{}

type MessageThrowingOption = func(*MessageThrowingListener)

func NewMessageThrowingListener(messageName string, options ...MessageThrowingOption) *MessageThrowingListener {
	l := MessageThrowingListener{
		messageName: messageName,
		logger:      hclog.Default().Named("message-throwing-listener"),
		tracer:      otel.Tracer("zenlistener/listener"),
	}
	for _, option := range options {
		option(&l)
	}
	return &l
}

func WithFilter(filter Filter) MessageThrowingOption {
	return func(l *MessageThrowingListener) {
		l.filter = filter
	}
}

func WithMetrics(metrics *otelPkg.ListenerMetrics) MessageThrowingOption {
	return func(l *MessageThrowingListener) {
		l.metrics = metrics
	}
}

func WithTracer(tracer trace.Tracer) MessageThrowingOption {
	return func(l *MessageThrowingListener) {
		l.tracer = tracer
	}
}

func WithListenerLogger(logger hclog.Logger) MessageThrowingOption {
	return func(l *MessageThrowingListener) {
		l.logger = logger
	}
}

func (l *MessageThrowingListener) MessageName() string {
	return l.messageName
}

// SetMessageName must be called before the listener is registered with a dispatcher
func (l *MessageThrowingListener) SetMessageName(messageName string) {
	l.messageName = messageName
}

// IsFailOnException is always true, errors of this listener abort the dispatching command
func (l *MessageThrowingListener) IsFailOnException() bool {
	return true
}

func (l *MessageThrowingListener) IsRelevant(ev event.Event) bool {
	engineEvent, ok := event.AsEngineEvent(ev)
	if !ok {
		return false
	}
	if err := l.filter.Accepts(engineEvent); err != nil {
		var conditionErr *ConditionEvaluationError
		if errors.As(err, &conditionErr) {
			l.logger.Warn("listener condition failed, event is ignored", "message", l.messageName, "type", engineEvent.Type(), "err", err)
		} else {
			l.logger.Trace("event is not relevant", "type", engineEvent.Type(), "reason", err)
		}
		return false
	}
	return true
}

func (l *MessageThrowingListener) OnEvent(ctx context.Context, uow command.UnitOfWork, ev event.Event) error {
	attrs := []attribute.KeyValue{
		attribute.String(otelPkg.AttributeMessageName, l.messageName),
		attribute.String(otelPkg.AttributeEventType, eventType(ev)),
	}
	l.metrics.Received(ctx, attrs...)
	if !l.IsRelevant(ev) {
		l.metrics.Ignored(ctx, attrs...)
		return nil
	}
	engineEvent, _ := event.AsEngineEvent(ev)

	ctx, span := l.tracer.Start(ctx, "throw-message", trace.WithAttributes(
		attribute.String(otelPkg.AttributeListener, listenerKind),
		attribute.String(otelPkg.AttributeMessageName, l.messageName),
		attribute.String(otelPkg.AttributeEventType, string(engineEvent.Type())),
		attribute.String(otelPkg.AttributeProcessInstanceId, engineEvent.ProcessInstanceId),
		attribute.String(otelPkg.AttributeExecutionId, engineEvent.ExecutionId),
	))
	defer span.End()

	if engineEvent.ProcessInstanceId == "" {
		l.metrics.Failed(ctx, attrs...)
		err := &InvalidArgumentError{
			Msg: fmt.Sprintf("cannot throw process-instance scoped message %q, since the dispatched event is not part of an ongoing process instance", l.messageName),
			Err: ErrInvalidScope,
		}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err := l.ResolveAndDispatch(ctx, uow, l.messageName, engineEvent.ExecutionId, engineEvent.ProcessInstanceId)
	if err != nil {
		l.metrics.Failed(ctx, attrs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// ResolveAndDispatch triggers message subscriptions of the execution. Only when the execution has none
// and is not the root execution of the process instance, the subscriptions of the process instance are triggered.
// Errors of the unit of work are returned as they are and stop the dispatch.
func (l *MessageThrowingListener) ResolveAndDispatch(ctx context.Context, uow command.UnitOfWork, messageName string, executionId string, processInstanceId string) error {
	subscriptions, err := uow.FindEventSubscriptionsByNameAndExecution(ctx, runtime.MessageSubscriptionType, messageName, executionId)
	if err != nil {
		return err
	}

	// revert to messaging the process instance
	if len(subscriptions) == 0 && executionId != processInstanceId {
		l.metrics.Fallback(ctx, attribute.String(otelPkg.AttributeMessageName, messageName))
		subscriptions, err = uow.FindEventSubscriptionsByNameAndExecution(ctx, runtime.MessageSubscriptionType, messageName, processInstanceId)
		if err != nil {
			return err
		}
	}

	span := trace.SpanFromContext(ctx)
	for _, subscription := range subscriptions {
		if err := uow.TriggerEventSubscription(ctx, subscription, nil, false); err != nil {
			return err
		}
		scope := subscriptionScope(subscription)
		span.AddEvent("message thrown", trace.WithAttributes(
			attribute.Int64(otelPkg.AttributeSubscriptionKey, subscription.GetKey()),
			attribute.String(otelPkg.AttributeSubscriptionScope, scope),
		))
		l.metrics.Thrown(ctx, 1,
			attribute.String(otelPkg.AttributeMessageName, messageName),
			attribute.String(otelPkg.AttributeSubscriptionScope, scope),
		)
		l.logger.Debug("message thrown",
			"message", messageName,
			"subscription", subscription.Key,
			"execution", subscription.ExecutionId,
			"processInstance", processInstanceId,
			"scope", scope,
		)
	}
	return nil
}

// eventType tolerates nil events, they are ignored by IsRelevant
func eventType(ev event.Event) string {
	if engineEvent, ok := ev.(*event.EngineEvent); ok {
		if engineEvent == nil {
			return ""
		}
		return string(engineEvent.Kind)
	}
	if ev == nil {
		return ""
	}
	return string(ev.Type())
}

func subscriptionScope(subscription runtime.EventSubscription) string {
	if subscription.IsProcessInstanceScoped() {
		return otelPkg.SubscriptionScopeProcessRoot
	}
	return otelPkg.SubscriptionScopeExecution
}
