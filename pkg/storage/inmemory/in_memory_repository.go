// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/storage"
	"github.com/pbinitiative/zenlistener/pkg/zenflake"
)

// Storage keeps event subscriptions in memory,
// please use NewStorage to create a new object of this type.
type Storage struct {
	mu                 sync.RWMutex
	EventSubscriptions map[int64]runtime.EventSubscription
	node               *snowflake.Node
}

func NewStorage() *Storage {
	return &Storage{
		EventSubscriptions: make(map[int64]runtime.EventSubscription),
		node:               zenflake.NewNodeFromEnvironment(),
	}
}

var _ storage.Storage = &Storage{}

func (mem *Storage) GenerateId() int64 {
	return mem.node.Generate().Int64()
}

func (mem *Storage) NewBatch() storage.Batch {
	return &StorageBatch{
		db:        mem,
		stmtToRun: make([]func() error, 0, 10),
	}
}

var _ storage.EventSubscriptionStorageReader = &Storage{}

func (mem *Storage) FindEventSubscriptionsByNameAndExecution(ctx context.Context, subscriptionType runtime.SubscriptionType, eventName string, executionId string) ([]runtime.EventSubscription, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.EventSubscription, 0)
	for _, sub := range mem.EventSubscriptions {
		if sub.Type != subscriptionType {
			continue
		}
		if sub.EventName != eventName {
			continue
		}
		if sub.ExecutionId != executionId {
			continue
		}
		if sub.State != runtime.SubscriptionStateActive {
			continue
		}
		res = append(res, sub)
	}
	return res, nil
}

func (mem *Storage) FindEventSubscriptionsByProcessInstance(ctx context.Context, processInstanceId string) ([]runtime.EventSubscription, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.EventSubscription, 0)
	for _, sub := range mem.EventSubscriptions {
		if sub.ProcessInstanceId != processInstanceId {
			continue
		}
		res = append(res, sub)
	}
	return res, nil
}

func (mem *Storage) FindEventSubscriptionByKey(ctx context.Context, key int64) (runtime.EventSubscription, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res, ok := mem.EventSubscriptions[key]
	if !ok {
		return res, storage.ErrNotFound
	}
	return res, nil
}

var _ storage.EventSubscriptionStorageWriter = &Storage{}

func (mem *Storage) SaveEventSubscription(ctx context.Context, subscription runtime.EventSubscription) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.EventSubscriptions[subscription.GetKey()] = subscription
	return nil
}

type StorageBatch struct {
	db        *Storage
	stmtToRun []func() error
}

var _ storage.Batch = &StorageBatch{}

// Flush runs the staged statements in order and resets the batch.
// Statements after a failing one still run, their errors are joined.
func (b *StorageBatch) Flush(ctx context.Context) error {
	var joinErr error
	for _, stmt := range b.stmtToRun {
		err := stmt()
		if err != nil {
			joinErr = errors.Join(joinErr, err)
		}
	}
	b.stmtToRun = make([]func() error, 0)
	return joinErr
}

func (b *StorageBatch) Clear(ctx context.Context) {
	b.stmtToRun = make([]func() error, 0)
}

func (b *StorageBatch) FindEventSubscriptionsByNameAndExecution(ctx context.Context, subscriptionType runtime.SubscriptionType, eventName string, executionId string) ([]runtime.EventSubscription, error) {
	return b.db.FindEventSubscriptionsByNameAndExecution(ctx, subscriptionType, eventName, executionId)
}

func (b *StorageBatch) FindEventSubscriptionsByProcessInstance(ctx context.Context, processInstanceId string) ([]runtime.EventSubscription, error) {
	return b.db.FindEventSubscriptionsByProcessInstance(ctx, processInstanceId)
}

func (b *StorageBatch) FindEventSubscriptionByKey(ctx context.Context, key int64) (runtime.EventSubscription, error) {
	return b.db.FindEventSubscriptionByKey(ctx, key)
}

func (b *StorageBatch) SaveEventSubscription(ctx context.Context, subscription runtime.EventSubscription) error {
	b.stmtToRun = append(b.stmtToRun, func() error {
		return b.db.SaveEventSubscription(ctx, subscription)
	})
	return nil
}
