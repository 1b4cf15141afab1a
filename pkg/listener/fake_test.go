package listener

import (
	"context"
	"errors"

	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/command"
)

type triggerCall struct {
	key       int64
	payload   any
	propagate bool
}

// fakeUnitOfWork records every query and trigger it receives
type fakeUnitOfWork struct {
	subscriptions []runtime.EventSubscription
	queries       []string
	triggers      []triggerCall

	findErr       error
	findErrOnCall int
	triggerErr    error
	triggerErrKey int64
}

var _ command.UnitOfWork = &fakeUnitOfWork{}

func (f *fakeUnitOfWork) FindEventSubscriptionsByNameAndExecution(ctx context.Context, subscriptionType runtime.SubscriptionType, eventName string, executionId string) ([]runtime.EventSubscription, error) {
	f.queries = append(f.queries, executionId)
	if f.findErr != nil && len(f.queries) == f.findErrOnCall {
		return nil, f.findErr
	}
	res := make([]runtime.EventSubscription, 0)
	for _, sub := range f.subscriptions {
		if sub.Type == subscriptionType && sub.EventName == eventName && sub.ExecutionId == executionId {
			res = append(res, sub)
		}
	}
	return res, nil
}

func (f *fakeUnitOfWork) TriggerEventSubscription(ctx context.Context, subscription runtime.EventSubscription, payload any, propagate bool) error {
	if f.triggerErr != nil && subscription.Key == f.triggerErrKey {
		return f.triggerErr
	}
	f.triggers = append(f.triggers, triggerCall{key: subscription.Key, payload: payload, propagate: propagate})
	return nil
}

func (f *fakeUnitOfWork) triggeredKeys() []int64 {
	res := make([]int64, 0, len(f.triggers))
	for _, tr := range f.triggers {
		res = append(res, tr.key)
	}
	return res
}

func messageSubscription(key int64, name string, executionId string, processInstanceId string) runtime.EventSubscription {
	return runtime.EventSubscription{
		Key:               key,
		Type:              runtime.MessageSubscriptionType,
		EventName:         name,
		ExecutionId:       executionId,
		ProcessInstanceId: processInstanceId,
		State:             runtime.SubscriptionStateActive,
	}
}

var errStorage = errors.New("storage unavailable")
