package otel

const (
	Prefix                       = "bpmn-"
	AttributeProcessInstanceId   = Prefix + "instance-id"
	AttributeExecutionId         = Prefix + "execution-id"
	AttributeMessageName         = Prefix + "message-name"
	AttributeEventType           = Prefix + "event-type"
	AttributeSubscriptionKey     = Prefix + "subscription-key"
	AttributeSubscriptionScope   = Prefix + "subscription-scope"
	AttributeListener            = Prefix + "listener"
	SubscriptionScopeExecution   = "execution"
	SubscriptionScopeProcessRoot = "process-instance"
)
