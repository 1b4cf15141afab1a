// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package runtime

import (
	"time"
)

// SubscriptionType distinguishes the kinds of event subscriptions sharing one storage
type SubscriptionType string

const (
	MessageSubscriptionType    SubscriptionType = "message"
	SignalSubscriptionType     SubscriptionType = "signal"
	CompensateSubscriptionType SubscriptionType = "compensate"
)

func (t SubscriptionType) IsValid() bool {
	switch t {
	case MessageSubscriptionType, SignalSubscriptionType, CompensateSubscriptionType:
		return true
	}
	return false
}

type SubscriptionState string

const (
	SubscriptionStateActive    SubscriptionState = "ACTIVE"
	SubscriptionStateTriggered SubscriptionState = "TRIGGERED"
)

// EventSubscription is created when an execution reaches a point where it waits for an event.
// A subscription belongs to exactly one execution, which may be the root execution of the process instance.
type EventSubscription struct {
	Key               int64             `json:"key,string"`
	Type              SubscriptionType  `json:"type"`
	EventName         string            `json:"eventName"`
	ExecutionId       string            `json:"executionId"`
	ProcessInstanceId string            `json:"processInstanceId"`
	ActivityId        string            `json:"activityId,omitempty"`
	State             SubscriptionState `json:"state"`
	CreatedAt         time.Time         `json:"createdAt"`
	TriggeredAt       *time.Time        `json:"triggeredAt,omitempty"`
	Payload           any               `json:"payload,omitempty"`
}

func (s EventSubscription) GetKey() int64 {
	return s.Key
}

func (s EventSubscription) GetState() SubscriptionState {
	return s.State
}

// IsProcessInstanceScoped returns true when the subscription is attached to the root execution
func (s EventSubscription) IsProcessInstanceScoped() bool {
	return s.ExecutionId == s.ProcessInstanceId
}

// TriggerEvent describes one delivered trigger of a subscription
type TriggerEvent struct {
	Subscription EventSubscription
	Payload      any
	// Propagate is passed through from the caller of the trigger untouched
	Propagate   bool
	TriggeredAt time.Time
}
