// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package listener

import (
	"fmt"
	"slices"

	"github.com/pbinitiative/feel"
	"github.com/pbinitiative/zenlistener/pkg/event"
)

// ConditionEvaluationError means the condition could not decide about the event
type ConditionEvaluationError struct {
	Msg string
	Err error
}

func (e *ConditionEvaluationError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ConditionEvaluationError) Unwrap() error {
	return e.Err
}

// Filter decides which engine events are relevant for a listener.
// The zero value accepts every event.
type Filter struct {
	// Types restricts the accepted event types, empty accepts all types
	Types []event.Type
	// EntityType accepts only events about given kind of entity, empty accepts all
	EntityType string
	// Condition is a FEEL expression evaluated against the event, it must yield a boolean
	Condition string
}

// Accepts returns nil when the event passes the filter, otherwise the reason it was rejected
func (f Filter) Accepts(ev *event.EngineEvent) error {
	if len(f.Types) > 0 && !slices.Contains(f.Types, ev.Type()) {
		return fmt.Errorf("event type %s is not one of %v", ev.Type(), f.Types)
	}
	if f.EntityType != "" && f.EntityType != ev.EntityType {
		return fmt.Errorf("entity type %q does not match %q", ev.EntityType, f.EntityType)
	}
	if f.Condition == "" {
		return nil
	}
	result, err := feel.EvalStringWithScope(f.Condition, conditionScope(ev))
	if err != nil {
		return &ConditionEvaluationError{Msg: fmt.Sprintf("failed to evaluate condition %q", f.Condition), Err: err}
	}
	accepted, ok := result.(bool)
	if !ok {
		return &ConditionEvaluationError{Msg: fmt.Sprintf("condition %q evaluated to %T, expected boolean", f.Condition, result)}
	}
	if !accepted {
		return fmt.Errorf("condition %q evaluated to false", f.Condition)
	}
	return nil
}

// conditionScope exposes event variables together with the event metadata
func conditionScope(ev *event.EngineEvent) map[string]interface{} {
	scope := make(map[string]interface{}, len(ev.Variables)+5)
	for k, v := range ev.Variables {
		scope[k] = v
	}
	scope["eventType"] = string(ev.Type())
	scope["processInstanceId"] = ev.ProcessInstanceId
	scope["executionId"] = ev.ExecutionId
	scope["processDefinitionId"] = ev.ProcessDefinitionId
	scope["entityType"] = ev.EntityType
	return scope
}
