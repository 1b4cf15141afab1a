// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// Package sqlite implements storage.Storage on top of an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/ptr"
	"github.com/pbinitiative/zenlistener/pkg/storage"
	"github.com/pbinitiative/zenlistener/pkg/zenflake"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

const selectColumns = `SELECT key, type, event_name, execution_id, process_instance_id, activity_id, state, created_at, triggered_at, payload FROM event_subscription`

type Storage struct {
	db     *sql.DB
	node   *snowflake.Node
	logger hclog.Logger
}

var _ storage.Storage = &Storage{}

// Open opens (or creates) the database behind dsn and applies the schema.
func Open(dsn string) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite storage: set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite storage: create schema: %w", err)
	}
	return &Storage{
		db:     db,
		node:   zenflake.NewNodeFromEnvironment(),
		logger: hclog.Default().Named("sqlite-storage"),
	}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) GenerateId() int64 {
	return s.node.Generate().Int64()
}

func (s *Storage) NewBatch() storage.Batch {
	return &StorageBatch{
		db:        s,
		stmtToRun: make([]func(tx *sql.Tx) error, 0, 10),
	}
}

func (s *Storage) FindEventSubscriptionsByNameAndExecution(ctx context.Context, subscriptionType runtime.SubscriptionType, eventName string, executionId string) ([]runtime.EventSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE type = ? AND event_name = ? AND execution_id = ? AND state = ?`,
		string(subscriptionType), eventName, executionId, string(runtime.SubscriptionStateActive),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: find subscriptions %s/%s of execution %s: %w", subscriptionType, eventName, executionId, err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *Storage) FindEventSubscriptionsByProcessInstance(ctx context.Context, processInstanceId string) ([]runtime.EventSubscription, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE process_instance_id = ?`, processInstanceId)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: find subscriptions of process instance %s: %w", processInstanceId, err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *Storage) FindEventSubscriptionByKey(ctx context.Context, key int64) (runtime.EventSubscription, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE key = ?`, key)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, storage.ErrNotFound
	}
	if err != nil {
		return sub, fmt.Errorf("sqlite storage: find subscription %d: %w", key, err)
	}
	return sub, nil
}

func (s *Storage) SaveEventSubscription(ctx context.Context, subscription runtime.EventSubscription) error {
	return saveEventSubscription(ctx, s.db, subscription)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveEventSubscription(ctx context.Context, db execer, sub runtime.EventSubscription) error {
	var payload sql.NullString
	if sub.Payload != nil {
		data, err := json.Marshal(sub.Payload)
		if err != nil {
			return fmt.Errorf("sqlite storage: marshal payload of subscription %d: %w", sub.Key, err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}
	var triggeredAt sql.NullString
	if sub.TriggeredAt != nil {
		triggeredAt = sql.NullString{String: sub.TriggeredAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO event_subscription (key, type, event_name, execution_id, process_instance_id, activity_id, state, created_at, triggered_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   type = excluded.type,
		   event_name = excluded.event_name,
		   execution_id = excluded.execution_id,
		   process_instance_id = excluded.process_instance_id,
		   activity_id = excluded.activity_id,
		   state = excluded.state,
		   created_at = excluded.created_at,
		   triggered_at = excluded.triggered_at,
		   payload = excluded.payload`,
		sub.Key,
		string(sub.Type),
		sub.EventName,
		sub.ExecutionId,
		sub.ProcessInstanceId,
		sub.ActivityId,
		string(sub.State),
		sub.CreatedAt.UTC().Format(time.RFC3339Nano),
		triggeredAt,
		payload,
	)
	if err != nil {
		return fmt.Errorf("sqlite storage: save subscription %d: %w", sub.Key, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (runtime.EventSubscription, error) {
	var (
		sub         runtime.EventSubscription
		subType     string
		state       string
		createdAt   string
		triggeredAt sql.NullString
		payload     sql.NullString
	)
	err := row.Scan(&sub.Key, &subType, &sub.EventName, &sub.ExecutionId, &sub.ProcessInstanceId, &sub.ActivityId, &state, &createdAt, &triggeredAt, &payload)
	if err != nil {
		return sub, err
	}
	sub.Type = runtime.SubscriptionType(subType)
	sub.State = runtime.SubscriptionState(state)
	sub.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return sub, fmt.Errorf("parse created_at of subscription %d: %w", sub.Key, err)
	}
	if triggeredAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, triggeredAt.String)
		if err != nil {
			return sub, fmt.Errorf("parse triggered_at of subscription %d: %w", sub.Key, err)
		}
		sub.TriggeredAt = ptr.To(t)
	}
	if payload.Valid {
		if err := json.Unmarshal([]byte(payload.String), &sub.Payload); err != nil {
			return sub, fmt.Errorf("unmarshal payload of subscription %d: %w", sub.Key, err)
		}
	}
	return sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]runtime.EventSubscription, error) {
	res := make([]runtime.EventSubscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite storage: scan subscription: %w", err)
		}
		res = append(res, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite storage: iterate subscriptions: %w", err)
	}
	return res, nil
}

// StorageBatch stages writes and runs them inside one transaction on Flush
type StorageBatch struct {
	db        *Storage
	stmtToRun []func(tx *sql.Tx) error
}

var _ storage.Batch = &StorageBatch{}

func (b *StorageBatch) Flush(ctx context.Context) (err error) {
	defer func() {
		b.stmtToRun = make([]func(tx *sql.Tx) error, 0)
	}()
	if len(b.stmtToRun) == 0 {
		return nil
	}
	tx, err := b.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite storage: begin batch: %w", err)
	}
	for _, stmt := range b.stmtToRun {
		if err := stmt(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				b.db.logger.Error("failed to rollback batch", "err", rbErr)
			}
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite storage: commit batch: %w", err)
	}
	return nil
}

func (b *StorageBatch) Clear(ctx context.Context) {
	b.stmtToRun = make([]func(tx *sql.Tx) error, 0)
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
	b.stmtToRun = append(b.stmtToRun, func(tx *sql.Tx) error {
		return saveEventSubscription(ctx, tx, subscription)
	})
	return nil
}
