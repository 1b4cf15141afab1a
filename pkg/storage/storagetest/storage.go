// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package storagetest

import (
	"fmt"
	"reflect"
	stdruntime "runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type StorageTestFunc func(s storage.Storage, t *testing.T) func(t *testing.T)

type StorageTester struct {
	processInstanceId string
	executionId       string
}

func (st *StorageTester) GetTests() map[string]StorageTestFunc {
	tests := map[string]StorageTestFunc{}

	// all test functions need to be registered here
	functions := []StorageTestFunc{
		st.TestEventSubscriptionStorageWriter,
		st.TestEventSubscriptionStorageReaderByKey,
		st.TestEventSubscriptionStorageReaderByNameAndExecution,
		st.TestEventSubscriptionStorageReaderByProcessInstance,
		st.TestBatchFlush,
		st.TestBatchClear,
	}

	for _, function := range functions {
		funcName := getFunctionName(function)
		strippedName := funcName[strings.LastIndex(funcName, ".")+1:]
		strippedName = strings.TrimSuffix(strippedName, "-fm")
		tests[strippedName] = function
	}
	return tests
}

func getFunctionName(i any) string {
	return stdruntime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()
}

func getSubscription(key int64, name string, executionId string, processInstanceId string) runtime.EventSubscription {
	return runtime.EventSubscription{
		Key:               key,
		Type:              runtime.MessageSubscriptionType,
		EventName:         name,
		ExecutionId:       executionId,
		ProcessInstanceId: processInstanceId,
		ActivityId:        fmt.Sprintf("catch-%d", key),
		State:             runtime.SubscriptionStateActive,
		CreatedAt:         time.Now().UTC().Truncate(time.Millisecond),
	}
}

func keys(subs []runtime.EventSubscription) []int64 {
	res := make([]int64, 0, len(subs))
	for _, sub := range subs {
		res = append(res, sub.Key)
	}
	slices.Sort(res)
	return res
}

func (st *StorageTester) PrepareTestData(s storage.Storage, t *testing.T) {
	r := s.GenerateId()

	st.processInstanceId = fmt.Sprintf("pi-%d", r)
	st.executionId = fmt.Sprintf("ex-%d", r)
	err := s.SaveEventSubscription(t.Context(), getSubscription(r, "prepared", st.executionId, st.processInstanceId))
	assert.NoError(t, err)
}

func (st *StorageTester) TestEventSubscriptionStorageWriter(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		sub := getSubscription(r, "writer", st.executionId, st.processInstanceId)
		err := s.SaveEventSubscription(t.Context(), sub)
		assert.NoError(t, err)

		// overwrite
		sub.State = runtime.SubscriptionStateTriggered
		sub.TriggeredAt = &sub.CreatedAt
		sub.Payload = map[string]any{"a": "b"}
		err = s.SaveEventSubscription(t.Context(), sub)
		assert.NoError(t, err)

		stored, err := s.FindEventSubscriptionByKey(t.Context(), r)
		require.NoError(t, err)
		assert.Equal(t, runtime.SubscriptionStateTriggered, stored.State)
		require.NotNil(t, stored.TriggeredAt)
		assert.True(t, sub.CreatedAt.Equal(*stored.TriggeredAt))
		assert.Equal(t, map[string]any{"a": "b"}, stored.Payload)
	}
}

func (st *StorageTester) TestEventSubscriptionStorageReaderByKey(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		sub := getSubscription(r, "byKey", st.executionId, st.processInstanceId)
		err := s.SaveEventSubscription(t.Context(), sub)
		assert.NoError(t, err)

		stored, err := s.FindEventSubscriptionByKey(t.Context(), r)
		require.NoError(t, err)
		assert.Equal(t, sub.Key, stored.Key)
		assert.Equal(t, sub.Type, stored.Type)
		assert.Equal(t, sub.EventName, stored.EventName)
		assert.Equal(t, sub.ExecutionId, stored.ExecutionId)
		assert.Equal(t, sub.ProcessInstanceId, stored.ProcessInstanceId)
		assert.Equal(t, sub.ActivityId, stored.ActivityId)
		assert.Equal(t, sub.State, stored.State)
		assert.True(t, sub.CreatedAt.Equal(stored.CreatedAt))
		assert.Nil(t, stored.TriggeredAt)

		_, err = s.FindEventSubscriptionByKey(t.Context(), s.GenerateId())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func (st *StorageTester) TestEventSubscriptionStorageReaderByNameAndExecution(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		executionId := fmt.Sprintf("ex-%d", r)

		first := getSubscription(s.GenerateId(), "orderShipped", executionId, st.processInstanceId)
		second := getSubscription(s.GenerateId(), "orderShipped", executionId, st.processInstanceId)
		otherName := getSubscription(s.GenerateId(), "orderCancelled", executionId, st.processInstanceId)
		otherScope := getSubscription(s.GenerateId(), "orderShipped", st.processInstanceId, st.processInstanceId)
		signal := getSubscription(s.GenerateId(), "orderShipped", executionId, st.processInstanceId)
		signal.Type = runtime.SignalSubscriptionType
		triggered := getSubscription(s.GenerateId(), "orderShipped", executionId, st.processInstanceId)
		triggered.State = runtime.SubscriptionStateTriggered

		for _, sub := range []runtime.EventSubscription{first, second, otherName, otherScope, signal, triggered} {
			assert.NoError(t, s.SaveEventSubscription(t.Context(), sub))
		}

		subs, err := s.FindEventSubscriptionsByNameAndExecution(t.Context(), runtime.MessageSubscriptionType, "orderShipped", executionId)
		require.NoError(t, err)
		assert.Equal(t, keys([]runtime.EventSubscription{first, second}), keys(subs))

		subs, err = s.FindEventSubscriptionsByNameAndExecution(t.Context(), runtime.MessageSubscriptionType, "orderShipped", st.processInstanceId)
		require.NoError(t, err)
		assert.Equal(t, []int64{otherScope.Key}, keys(subs))

		subs, err = s.FindEventSubscriptionsByNameAndExecution(t.Context(), runtime.MessageSubscriptionType, "missing", executionId)
		require.NoError(t, err)
		assert.NotNil(t, subs)
		assert.Empty(t, subs)
	}
}

func (st *StorageTester) TestEventSubscriptionStorageReaderByProcessInstance(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		processInstanceId := fmt.Sprintf("pi-%d", r)

		root := getSubscription(s.GenerateId(), "a", processInstanceId, processInstanceId)
		child := getSubscription(s.GenerateId(), "b", fmt.Sprintf("ex-%d", r), processInstanceId)
		child.State = runtime.SubscriptionStateTriggered
		assert.NoError(t, s.SaveEventSubscription(t.Context(), root))
		assert.NoError(t, s.SaveEventSubscription(t.Context(), child))

		subs, err := s.FindEventSubscriptionsByProcessInstance(t.Context(), processInstanceId)
		require.NoError(t, err)
		assert.Equal(t, keys([]runtime.EventSubscription{root, child}), keys(subs))

		subs, err = s.FindEventSubscriptionsByProcessInstance(t.Context(), "unknown-instance")
		require.NoError(t, err)
		assert.Empty(t, subs)
	}
}

func (st *StorageTester) TestBatchFlush(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		sub := getSubscription(r, "batched", st.executionId, st.processInstanceId)

		b := s.NewBatch()
		err := b.SaveEventSubscription(t.Context(), sub)
		assert.NoError(t, err)

		err = b.Flush(t.Context())
		require.NoError(t, err)

		stored, err := s.FindEventSubscriptionByKey(t.Context(), r)
		require.NoError(t, err)
		assert.Equal(t, "batched", stored.EventName)

		// batch can be reused after flush
		sub.State = runtime.SubscriptionStateTriggered
		assert.NoError(t, b.SaveEventSubscription(t.Context(), sub))
		require.NoError(t, b.Flush(t.Context()))

		stored, err = b.FindEventSubscriptionByKey(t.Context(), r)
		require.NoError(t, err)
		assert.Equal(t, runtime.SubscriptionStateTriggered, stored.State)
	}
}

func (st *StorageTester) TestBatchClear(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		sub := getSubscription(r, "cleared", st.executionId, st.processInstanceId)

		b := s.NewBatch()
		err := b.SaveEventSubscription(t.Context(), sub)
		assert.NoError(t, err)
		b.Clear(t.Context())

		_, err = s.FindEventSubscriptionByKey(t.Context(), r)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}
