// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package sqlite_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/storage"
	"github.com/pbinitiative/zenlistener/pkg/storage/sqlite"
	"github.com/pbinitiative/zenlistener/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStorage(t *testing.T, dsn string) *sqlite.Storage {
	t.Helper()
	store, err := sqlite.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSqliteStorage(t *testing.T) {
	var store storage.Storage = openStorage(t, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))

	tester := storagetest.StorageTester{}

	tests := tester.GetTests()
	tester.PrepareTestData(store, t)
	for name, testFunc := range tests {
		t.Run(name, testFunc(store, t))
	}
}

func TestSqliteStorageSurvivesReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "subscriptions.db")

	store, err := sqlite.Open(dsn)
	require.NoError(t, err)
	key := store.GenerateId()
	err = store.SaveEventSubscription(t.Context(), runtime.EventSubscription{
		Key:               key,
		Type:              runtime.MessageSubscriptionType,
		EventName:         "orderShipped",
		ExecutionId:       "e1",
		ProcessInstanceId: "p1",
		State:             runtime.SubscriptionStateActive,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := openStorage(t, dsn)
	subs, err := reopened.FindEventSubscriptionsByNameAndExecution(t.Context(), runtime.MessageSubscriptionType, "orderShipped", "e1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, key, subs[0].Key)
}
