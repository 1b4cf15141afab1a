// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package listener

import (
	"context"
	"slices"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenlistener/pkg/command"
	"github.com/pbinitiative/zenlistener/pkg/event"
)

type registration struct {
	listener EventListener
	types    []event.Type
}

// Dispatcher routes events to registered listeners in registration order.
type Dispatcher struct {
	mu            sync.RWMutex
	registrations []registration
	logger        hclog.Logger
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		registrations: []registration{},
		logger:        hclog.Default().Named("event-dispatcher"),
	}
}

// Register adds the listener for given event types. Without types the listener receives all events.
func (d *Dispatcher) Register(listener EventListener, types ...event.Type) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registrations = append(d.registrations, registration{
		listener: listener,
		types:    types,
	})
}

// Remove unregisters every registration of the listener
func (d *Dispatcher) Remove(listener EventListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registrations = slices.DeleteFunc(d.registrations, func(r registration) bool {
		return r.listener == listener
	})
}

func (d *Dispatcher) Listeners() []EventListener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	res := make([]EventListener, 0, len(d.registrations))
	for _, r := range d.registrations {
		res = append(res, r.listener)
	}
	return res
}

// DispatchEvent calls every listener registered for the type of the event.
// The first error of a listener that fails on exception is returned unchanged and stops the dispatch,
// errors of other listeners are logged.
func (d *Dispatcher) DispatchEvent(ctx context.Context, uow command.UnitOfWork, ev event.Event) error {
	d.mu.RLock()
	registrations := slices.Clone(d.registrations)
	d.mu.RUnlock()

	for _, r := range registrations {
		if len(r.types) > 0 && !slices.Contains(r.types, ev.Type()) {
			continue
		}
		err := r.listener.OnEvent(ctx, uow, ev)
		if err == nil {
			continue
		}
		if r.listener.IsFailOnException() {
			return err
		}
		d.logger.Warn("event listener failed, continuing dispatch", "type", ev.Type(), "err", err)
	}
	return nil
}
