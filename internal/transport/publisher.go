package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/pbinitiative/zenlistener/internal/appcontext"
	"github.com/pbinitiative/zenlistener/pkg/event"
)

// NewGoChannel creates the in process pub/sub used when no external broker is configured
func NewGoChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
}

type Publisher struct {
	publisher message.Publisher
	topic     string
}

func NewPublisher(publisher message.Publisher, topic string) *Publisher {
	return &Publisher{
		publisher: publisher,
		topic:     topic,
	}
}

func (p *Publisher) Publish(ctx context.Context, ev *event.EngineEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode engine event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if correlationId, ok := appcontext.GetCorrelationId(ctx); ok {
		middleware.SetCorrelationID(correlationId, msg)
	}
	msg.SetContext(ctx)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish engine event to %s: %w", p.topic, err)
	}
	return nil
}
