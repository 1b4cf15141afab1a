package listener

import (
	"context"
	"errors"
	"testing"

	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/command"
	"github.com/pbinitiative/zenlistener/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	name            string
	err             error
	failOnException bool
	calls           *[]string
}

func (r *recordingListener) IsRelevant(ev event.Event) bool {
	return true
}

func (r *recordingListener) OnEvent(ctx context.Context, uow command.UnitOfWork, ev event.Event) error {
	*r.calls = append(*r.calls, r.name)
	return r.err
}

func (r *recordingListener) IsFailOnException() bool {
	return r.failOnException
}

func TestDispatcherCallsListenersForRegisteredTypes(t *testing.T) {
	calls := []string{}
	d := NewDispatcher()
	d.Register(&recordingListener{name: "all", calls: &calls})
	d.Register(&recordingListener{name: "completed", calls: &calls}, event.ActivityCompleted)
	d.Register(&recordingListener{name: "started", calls: &calls}, event.ActivityStarted)

	err := d.DispatchEvent(t.Context(), &fakeUnitOfWork{}, event.NewEngineEvent(event.ActivityCompleted, "e1", "p1"))

	require.NoError(t, err)
	assert.Equal(t, []string{"all", "completed"}, calls)
}

func TestDispatcherSwallowsErrorsOfTolerantListeners(t *testing.T) {
	calls := []string{}
	d := NewDispatcher()
	d.Register(&recordingListener{name: "tolerant", err: errors.New("ignored"), calls: &calls})
	d.Register(&recordingListener{name: "next", calls: &calls})

	err := d.DispatchEvent(t.Context(), &fakeUnitOfWork{}, event.NewEngineEvent(event.Custom, "e1", "p1"))

	assert.NoError(t, err)
	assert.Equal(t, []string{"tolerant", "next"}, calls)
}

func TestDispatcherPropagatesMessageThrowingListenerErrors(t *testing.T) {
	// given
	calls := []string{}
	d := NewDispatcher()
	d.Register(NewMessageThrowingListener("orderShipped"))
	d.Register(&recordingListener{name: "after", calls: &calls})
	uow := &fakeUnitOfWork{}

	// when
	err := d.DispatchEvent(t.Context(), uow, event.NewEngineEvent(event.ActivityStarted, "", ""))

	// then
	assert.ErrorIs(t, err, ErrInvalidScope)
	assert.Empty(t, calls, "dispatch stops at the failing listener")
	assert.Empty(t, uow.queries)
}

func TestDispatcherRoutesToMessageThrowingListener(t *testing.T) {
	d := NewDispatcher()
	l := NewMessageThrowingListener("orderShipped")
	d.Register(l, event.ActivityCompleted)
	uow := &fakeUnitOfWork{subscriptions: []runtime.EventSubscription{
		messageSubscription(2, "orderShipped", "p1", "p1"),
	}}

	require.NoError(t, d.DispatchEvent(t.Context(), uow, event.NewEngineEvent(event.ActivityStarted, "e1", "p1")))
	assert.Empty(t, uow.triggers)

	require.NoError(t, d.DispatchEvent(t.Context(), uow, event.NewEngineEvent(event.ActivityCompleted, "e1", "p1")))
	assert.Equal(t, []int64{2}, uow.triggeredKeys())

	d.Remove(l)
	assert.Empty(t, d.Listeners())
}
