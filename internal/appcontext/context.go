package appcontext

import (
	"context"
)

type CONTEXT_KEY string

var (
	CorrelationKey CONTEXT_KEY = "correlationId"
)

func WithCorrelationId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationKey, id)
}

func GetCorrelationId(ctx context.Context) (string, bool) {
	correlationId := ctx.Value(CorrelationKey)
	if correlationId == nil {
		return "", false
	}
	id, ok := correlationId.(string)
	return id, ok && id != ""
}
