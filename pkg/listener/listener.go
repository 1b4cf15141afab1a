// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// Package listener contains event listeners that react to events dispatched by the engine.
package listener

import (
	"context"
	"errors"

	"github.com/pbinitiative/zenlistener/pkg/command"
	"github.com/pbinitiative/zenlistener/pkg/event"
)

// EventListener receives events from the dispatcher.
type EventListener interface {
	// IsRelevant reports whether the listener wants to act on the event.
	IsRelevant(ev event.Event) bool

	// OnEvent handles the event inside the unit of work of the dispatching command.
	// Irrelevant events are ignored without error.
	OnEvent(ctx context.Context, uow command.UnitOfWork, ev event.Event) error

	// IsFailOnException reports whether an error returned by OnEvent must abort the
	// dispatching command. When false the dispatcher logs the error and continues.
	IsFailOnException() bool
}

// ErrInvalidScope is returned when a process instance scoped action is requested
// for an event that does not belong to a process instance.
var ErrInvalidScope = errors.New("dispatched event is not part of an ongoing process instance")

type InvalidArgumentError struct {
	Msg string
	Err error
}

func (e *InvalidArgumentError) Error() string {
	return e.Msg
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.Err
}
