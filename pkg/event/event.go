// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// Package event contains the runtime events the engine dispatches to its listeners.
package event

import (
	"errors"
	"fmt"
)

// Event is anything the dispatch bus routes to a listener.
type Event interface {
	Type() Type
}

// Generic is an event without execution metadata, e.g. engine lifecycle events.
type Generic struct {
	Kind Type `json:"type"`
}

func (g Generic) Type() Type {
	return g.Kind
}

// EngineEvent is an event that carries execution metadata of the engine.
//
// When ProcessInstanceId is set ExecutionId is set as well. The root
// execution of a process instance has the same id as the instance itself.
type EngineEvent struct {
	Kind                Type           `json:"type"`
	ProcessInstanceId   string         `json:"processInstanceId,omitempty"`
	ExecutionId         string         `json:"executionId,omitempty"`
	ProcessDefinitionId string         `json:"processDefinitionId,omitempty"`
	EntityType          string         `json:"entityType,omitempty"`
	Variables           map[string]any `json:"variables,omitempty"`
}

var _ Event = &EngineEvent{}

func NewEngineEvent(kind Type, executionId string, processInstanceId string) *EngineEvent {
	return &EngineEvent{
		Kind:              kind,
		ExecutionId:       executionId,
		ProcessInstanceId: processInstanceId,
	}
}

func (e *EngineEvent) Type() Type {
	return e.Kind
}

// Validate checks the structural invariants of the event
func (e *EngineEvent) Validate() error {
	if e.Kind == "" {
		return errors.New("event type must be set")
	}
	if _, ok := knownTypes[e.Kind]; !ok {
		return fmt.Errorf("unknown event type: %q", e.Kind)
	}
	if e.ProcessInstanceId != "" && e.ExecutionId == "" {
		return fmt.Errorf("event of process instance %s is missing execution id", e.ProcessInstanceId)
	}
	return nil
}

// AsEngineEvent returns the engine event behind ev, if there is one.
func AsEngineEvent(ev Event) (*EngineEvent, bool) {
	switch e := ev.(type) {
	case *EngineEvent:
		return e, e != nil
	default:
		return nil, false
	}
}
