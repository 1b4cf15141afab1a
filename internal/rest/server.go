package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pbinitiative/zenlistener/internal/appcontext"
	"github.com/pbinitiative/zenlistener/internal/config"
	"github.com/pbinitiative/zenlistener/internal/log"
	"github.com/pbinitiative/zenlistener/internal/rest/middleware"
	"github.com/pbinitiative/zenlistener/internal/transport"
	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/event"
	"github.com/pbinitiative/zenlistener/pkg/listener"
	"github.com/pbinitiative/zenlistener/pkg/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const correlationHeader = "X-Correlation-Id"

// EventProcessor runs an engine event through the registered listeners
type EventProcessor interface {
	Process(ctx context.Context, ev event.Event) error
}

// EventPublisher hands an engine event over to the message transport
type EventPublisher interface {
	Publish(ctx context.Context, ev *event.EngineEvent) error
}

type ListenerSource interface {
	Listeners() []listener.EventListener
}

type Server struct {
	addr       string
	name       string
	conf       config.Config
	storage    storage.Storage
	processor  EventProcessor
	publisher  EventPublisher
	listeners  ListenerSource
	server     *http.Server
	now        func() time.Time
	maxPayload int64
}

type ServerOption = func(*Server)

// WithPublisher enables asynchronous event delivery through the message transport
func WithPublisher(publisher EventPublisher) ServerOption {
	return func(s *Server) {
		s.publisher = publisher
	}
}

func NewServer(conf config.Config, store storage.Storage, processor EventProcessor, listeners ListenerSource, options ...ServerOption) *Server {
	r := chi.NewRouter()
	s := Server{
		addr:      conf.HttpServer.Addr,
		name:      conf.Name,
		conf:      conf,
		storage:   store,
		processor: processor,
		listeners: listeners,
		server: &http.Server{
			ReadHeaderTimeout: 3 * time.Second,
			Handler:           r,
			Addr:              conf.HttpServer.Addr,
		},
		now:        time.Now,
		maxPayload: 1 << 20,
	}
	for _, option := range options {
		option(&s)
	}
	r.Use(middleware.Cors(conf.HttpServer.AllowedOrigins))
	r.Use(middleware.Opentelemetry(conf.Tracing))
	r.Use(correlation)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/events", s.PublishEvent)
		r.Post("/events/async", s.PublishEventAsync)
		r.Post("/event-subscriptions", s.CreateEventSubscription)
		r.Get("/event-subscriptions/{key}", s.GetEventSubscription)
		r.With(middleware.StripEmptyQueryParams()).
			Get("/process-instances/{processInstanceId}/event-subscriptions", s.GetProcessInstanceEventSubscriptions)
	})
	// register system endpoints
	r.Route("/system", func(r chi.Router) {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/status", s.GetStatus)
	})
	return &s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	log.Info("ZenListener REST server listening on %s", ln.Addr())
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("Error starting server: %s", err)
		}
	}()
	return ln, nil
}

func (s *Server) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		log.Error("Error stopping server: %s", err)
	}
}

func correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(correlationHeader); id != "" {
			w.Header().Set(correlationHeader, id)
			r = r.WithContext(appcontext.WithCorrelationId(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) decodeEvent(w http.ResponseWriter, r *http.Request) (*event.EngineEvent, bool) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, s.maxPayload))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ApiError{Message: err.Error(), Type: ErrorTypeBadRequest})
		return nil, false
	}
	ev, err := transport.Decode(payload)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ApiError{Message: err.Error(), Type: ErrorTypeBadRequest})
		return nil, false
	}
	return ev, true
}

// PublishEventAsync hands the event to the message transport and returns before it is processed
func (s *Server) PublishEventAsync(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, r, http.StatusServiceUnavailable, ApiError{Message: "message transport is disabled", Type: ErrorTypeError})
		return
	}
	ev, ok := s.decodeEvent(w, r)
	if !ok {
		return
	}
	if err := s.publisher.Publish(r.Context(), ev); err != nil {
		writeError(w, r, http.StatusInternalServerError, ApiError{Message: err.Error(), Type: ErrorTypeError})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) PublishEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.decodeEvent(w, r)
	if !ok {
		return
	}
	err := s.processor.Process(r.Context(), ev)
	if err != nil {
		if transport.IsPermanent(err) {
			writeError(w, r, http.StatusBadRequest, ApiError{Message: err.Error(), Type: ErrorTypeBadRequest})
			return
		}
		writeError(w, r, http.StatusInternalServerError, ApiError{Message: err.Error(), Type: ErrorTypeError})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreateEventSubscriptionRequest struct {
	Type              runtime.SubscriptionType `json:"type"`
	EventName         string                   `json:"eventName"`
	ExecutionId       string                   `json:"executionId"`
	ProcessInstanceId string                   `json:"processInstanceId"`
	ActivityId        string                   `json:"activityId"`
}

func (req CreateEventSubscriptionRequest) validate() error {
	var errJoin error
	if !req.Type.IsValid() {
		errJoin = errors.Join(errJoin, fmt.Errorf("unknown subscription type %q", req.Type))
	}
	if req.EventName == "" {
		errJoin = errors.Join(errJoin, errors.New("eventName must be set"))
	}
	if req.ExecutionId == "" {
		errJoin = errors.Join(errJoin, errors.New("executionId must be set"))
	}
	if req.ProcessInstanceId == "" {
		errJoin = errors.Join(errJoin, errors.New("processInstanceId must be set"))
	}
	return errJoin
}

func (s *Server) CreateEventSubscription(w http.ResponseWriter, r *http.Request) {
	req := CreateEventSubscriptionRequest{}
	if err := json.NewDecoder(io.LimitReader(r.Body, s.maxPayload)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ApiError{Message: err.Error(), Type: ErrorTypeBadRequest})
		return
	}
	if req.Type == "" {
		req.Type = runtime.MessageSubscriptionType
	}
	if err := req.validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, ApiError{Message: err.Error(), Type: ErrorTypeBadRequest})
		return
	}
	sub := runtime.EventSubscription{
		Key:               s.storage.GenerateId(),
		Type:              req.Type,
		EventName:         req.EventName,
		ExecutionId:       req.ExecutionId,
		ProcessInstanceId: req.ProcessInstanceId,
		ActivityId:        req.ActivityId,
		State:             runtime.SubscriptionStateActive,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.storage.SaveEventSubscription(r.Context(), sub); err != nil {
		writeError(w, r, http.StatusInternalServerError, ApiError{Message: err.Error(), Type: ErrorTypeError})
		return
	}
	writeJson(w, http.StatusCreated, sub)
}

func (s *Server) GetEventSubscription(w http.ResponseWriter, r *http.Request) {
	key, err := strconv.ParseInt(chi.URLParam(r, "key"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ApiError{Message: "key must be a number", Type: ErrorTypeBadRequest})
		return
	}
	sub, err := s.storage.FindEventSubscriptionByKey(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, ApiError{Message: fmt.Sprintf("event subscription %d not found", key), Type: ErrorTypeNotFound})
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, ApiError{Message: err.Error(), Type: ErrorTypeError})
		return
	}
	writeJson(w, http.StatusOK, sub)
}

type EventSubscriptionsPage struct {
	Items []runtime.EventSubscription `json:"items"`
	Count int                         `json:"count"`
}

func (s *Server) GetProcessInstanceEventSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.storage.FindEventSubscriptionsByProcessInstance(r.Context(), chi.URLParam(r, "processInstanceId"))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, ApiError{Message: err.Error(), Type: ErrorTypeError})
		return
	}
	items := make([]runtime.EventSubscription, 0, len(subs))
	state := runtime.SubscriptionState(r.URL.Query().Get("state"))
	for _, sub := range subs {
		if state != "" && sub.State != state {
			continue
		}
		items = append(items, sub)
	}
	writeJson(w, http.StatusOK, EventSubscriptionsPage{Items: items, Count: len(items)})
}

type ListenerStatus struct {
	MessageName string `json:"messageName,omitempty"`
	FailFast    bool   `json:"failOnException"`
}

type Status struct {
	Name      string           `json:"name"`
	Storage   string           `json:"storage"`
	Transport bool             `json:"transport"`
	Listeners []ListenerStatus `json:"listeners"`
}

func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		Name:      s.name,
		Storage:   s.conf.Storage.Type,
		Transport: s.conf.Transport.Enabled,
		Listeners: []ListenerStatus{},
	}
	for _, l := range s.listeners.Listeners() {
		ls := ListenerStatus{FailFast: l.IsFailOnException()}
		if named, ok := l.(interface{ MessageName() string }); ok {
			ls.MessageName = named.MessageName()
		}
		status.Listeners = append(status.Listeners, ls)
	}
	writeJson(w, http.StatusOK, status)
}
