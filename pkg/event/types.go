// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package event

import (
	"fmt"
	"strings"
)

// Type classifies an event dispatched by the engine.
type Type string

const (
	EntityCreated           Type = "ENTITY_CREATED"
	EntityInitialized       Type = "ENTITY_INITIALIZED"
	EntityUpdated           Type = "ENTITY_UPDATED"
	EntityDeleted           Type = "ENTITY_DELETED"
	ActivityStarted         Type = "ACTIVITY_STARTED"
	ActivityCompleted       Type = "ACTIVITY_COMPLETED"
	ActivityCancelled       Type = "ACTIVITY_CANCELLED"
	ActivityMessageReceived Type = "ACTIVITY_MESSAGE_RECEIVED"
	ProcessStarted          Type = "PROCESS_STARTED"
	ProcessCompleted        Type = "PROCESS_COMPLETED"
	TimerFired              Type = "TIMER_FIRED"
	JobExecutionFailure     Type = "JOB_EXECUTION_FAILURE"
	EngineCreated           Type = "ENGINE_CREATED"
	EngineClosed            Type = "ENGINE_CLOSED"
	Custom                  Type = "CUSTOM"
)

var knownTypes = map[Type]struct{}{
	EntityCreated:           {},
	EntityInitialized:       {},
	EntityUpdated:           {},
	EntityDeleted:           {},
	ActivityStarted:         {},
	ActivityCompleted:       {},
	ActivityCancelled:       {},
	ActivityMessageReceived: {},
	ProcessStarted:          {},
	ProcessCompleted:        {},
	TimerFired:              {},
	JobExecutionFailure:     {},
	EngineCreated:           {},
	EngineClosed:            {},
	Custom:                  {},
}

// ParseType returns the Type for given name, names are case insensitive
func ParseType(name string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := knownTypes[t]; !ok {
		return "", fmt.Errorf("unknown event type: %q", name)
	}
	return t, nil
}

// ParseTypes parses a comma separated list of event type names.
// Empty input yields an empty result.
func ParseTypes(list string) ([]Type, error) {
	res := make([]Type, 0)
	if strings.TrimSpace(list) == "" {
		return res, nil
	}
	for _, name := range strings.Split(list, ",") {
		t, err := ParseType(name)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}
