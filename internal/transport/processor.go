package transport

import (
	"context"
	"errors"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenlistener/pkg/command"
	"github.com/pbinitiative/zenlistener/pkg/event"
	"github.com/pbinitiative/zenlistener/pkg/listener"
)

// EventDispatcher delivers an event to the registered listeners within a unit of work
type EventDispatcher interface {
	DispatchEvent(ctx context.Context, uow command.UnitOfWork, ev event.Event) error
}

type CommandExecutor interface {
	Execute(ctx context.Context, name string, fn command.Func) error
}

// Processor runs every inbound event in its own unit of work
type Processor struct {
	executor   CommandExecutor
	dispatcher EventDispatcher
	logger     hclog.Logger
}

func NewProcessor(executor CommandExecutor, dispatcher EventDispatcher) *Processor {
	return &Processor{
		executor:   executor,
		dispatcher: dispatcher,
		logger:     hclog.Default().Named("event-processor"),
	}
}

func (p *Processor) Process(ctx context.Context, ev event.Event) error {
	return p.executor.Execute(ctx, "dispatch-event", func(ctx context.Context, uow command.UnitOfWork) error {
		return p.dispatcher.DispatchEvent(ctx, uow, ev)
	})
}

// IsPermanent reports whether processing the same event again can not succeed.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var invalidArg *listener.InvalidArgumentError
	var invalidEvent *InvalidEventError
	return errors.Is(err, listener.ErrInvalidScope) ||
		errors.As(err, &invalidArg) ||
		errors.As(err, &invalidEvent)
}

// InvalidEventError is returned for payloads that can not be decoded into an engine event
type InvalidEventError struct {
	Msg string
	Err error
}

func (e *InvalidEventError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *InvalidEventError) Unwrap() error {
	return e.Err
}
