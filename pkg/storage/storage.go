// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package storage

import (
	"context"
	"errors"

	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
)

var ErrNotFound = errors.New("not found")

// Storage interface for reading and writing event subscriptions into a (persistent) state.
//
// Methods that are expected to return exactly one match MUST return ErrNotFound when the result does not exist
type Storage interface {
	EventSubscriptionStorageReader
	EventSubscriptionStorageWriter

	GenerateId() int64
	NewBatch() Batch
}

// Batch collects writes and applies them in one go on Flush.
// Reads issued through the batch see the underlying storage.
type Batch interface {
	EventSubscriptionStorageReader
	EventSubscriptionStorageWriter

	// Flush will write the batch into the storage and prepares the batch for new statements
	Flush(ctx context.Context) error
	// Clear discards statements that were not flushed yet
	Clear(ctx context.Context)
}

type EventSubscriptionStorageReader interface {
	// FindEventSubscriptionsByNameAndExecution returns active subscriptions of given type and event name
	// attached to the execution. Order of the result is not specified.
	FindEventSubscriptionsByNameAndExecution(ctx context.Context, subscriptionType runtime.SubscriptionType, eventName string, executionId string) ([]runtime.EventSubscription, error)

	// FindEventSubscriptionsByProcessInstance returns all subscriptions of the process instance regardless of their state
	FindEventSubscriptionsByProcessInstance(ctx context.Context, processInstanceId string) ([]runtime.EventSubscription, error)

	FindEventSubscriptionByKey(ctx context.Context, key int64) (runtime.EventSubscription, error)
}

type EventSubscriptionStorageWriter interface {
	// SaveEventSubscription persists the EventSubscription
	// and potentially overwrites prior data stored with given key
	SaveEventSubscription(ctx context.Context, subscription runtime.EventSubscription) error
}
