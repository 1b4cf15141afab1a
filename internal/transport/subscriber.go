package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenlistener/internal/appcontext"
	"github.com/pbinitiative/zenlistener/pkg/event"
)

const handlerName = "engine-events"

const (
	DefaultMaxRetries      = 5
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

// Subscriber consumes json encoded engine events from a topic and processes them.
// Messages are acked when processed or when the event can never be processed. Other failures are retried
// with exponential backoff, once the retries are exhausted the message goes to the poison topic or is dropped.
type Subscriber struct {
	router    *message.Router
	processor *Processor
	logger    hclog.Logger

	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	poisonPublisher message.Publisher
	poisonTopic     string
}

type SubscriberOption = func(*Subscriber)

func WithRetry(maxRetries int, initialInterval time.Duration, maxInterval time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		s.maxRetries = maxRetries
		s.initialInterval = initialInterval
		s.maxInterval = maxInterval
	}
}

// WithPoisonQueue publishes messages that failed all retries to topic
func WithPoisonQueue(publisher message.Publisher, topic string) SubscriberOption {
	return func(s *Subscriber) {
		s.poisonPublisher = publisher
		s.poisonTopic = topic
	}
}

func NewSubscriber(subscriber message.Subscriber, topic string, processor *Processor, logger hclog.Logger, options ...SubscriberOption) (*Subscriber, error) {
	if logger == nil {
		logger = hclog.Default().Named("transport")
	}
	adapter := NewLoggerAdapter(logger.Named("router"))
	router, err := message.NewRouter(message.RouterConfig{}, adapter)
	if err != nil {
		return nil, err
	}
	s := &Subscriber{
		router:          router,
		processor:       processor,
		logger:          logger,
		maxRetries:      DefaultMaxRetries,
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
	}
	for _, option := range options {
		option(s)
	}

	var exhausted message.HandlerMiddleware = s.dropExhausted
	if s.poisonPublisher != nil {
		exhausted, err = middleware.PoisonQueueWithFilter(s.poisonPublisher, s.poisonTopic, func(err error) bool {
			return !IsPermanent(err)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create poison queue middleware: %w", err)
		}
	}
	router.AddMiddleware(
		middleware.CorrelationID,
		exhausted,
		middleware.Retry{
			MaxRetries:      s.maxRetries,
			InitialInterval: s.initialInterval,
			MaxInterval:     s.maxInterval,
			Multiplier:      2,
			ShouldRetry: func(params middleware.RetryParams) bool {
				return !IsPermanent(params.Err)
			},
			Logger: adapter,
		}.Middleware,
		middleware.Recoverer,
	)
	router.AddNoPublisherHandler(handlerName, topic, subscriber, s.handle)
	return s, nil
}

// dropExhausted acks messages that still fail after all retries, a nack would redeliver them immediately
func (s *Subscriber) dropExhausted(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		produced, err := h(msg)
		if err != nil {
			s.logger.Error("dropping event after exhausted retries", "uuid", msg.UUID, "err", err)
		}
		return produced, nil
	}
}

// Run blocks until ctx is cancelled or the subscriber is closed
func (s *Subscriber) Run(ctx context.Context) error {
	return s.router.Run(ctx)
}

// Running is closed once the subscriber consumes messages
func (s *Subscriber) Running() chan struct{} {
	return s.router.Running()
}

func (s *Subscriber) Close() error {
	return s.router.Close()
}

func (s *Subscriber) handle(msg *message.Message) error {
	ctx := msg.Context()
	if correlationId := middleware.MessageCorrelationID(msg); correlationId != "" {
		ctx = appcontext.WithCorrelationId(ctx, correlationId)
	}
	ev, err := Decode(msg.Payload)
	if err == nil {
		err = s.processor.Process(ctx, ev)
	}
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		s.logger.Error("dropping event that can not be processed", "uuid", msg.UUID, "err", err)
		return nil
	}
	s.logger.Warn("failed to process event", "uuid", msg.UUID, "err", err)
	return err
}

// Decode parses and validates a json encoded engine event
func Decode(payload []byte) (*event.EngineEvent, error) {
	ev := event.EngineEvent{}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, &InvalidEventError{Msg: "failed to decode engine event", Err: err}
	}
	if err := ev.Validate(); err != nil {
		return nil, &InvalidEventError{Msg: "invalid engine event", Err: err}
	}
	return &ev, nil
}
