package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pbinitiative/zenlistener/internal/config"
	"github.com/pbinitiative/zenlistener/internal/log"
	"github.com/pbinitiative/zenlistener/internal/otel"
	"github.com/pbinitiative/zenlistener/internal/profile"
	"github.com/pbinitiative/zenlistener/internal/rest"
	"github.com/pbinitiative/zenlistener/internal/transport"
	"github.com/pbinitiative/zenlistener/pkg/command"
	otelPkg "github.com/pbinitiative/zenlistener/pkg/otel"
)

func main() {
	profile.InitProfile()
	log.Init()

	appContext, ctxCancel := context.WithCancel(context.Background())

	conf := config.InitConfig()

	openTelemetry, err := otel.SetupOtel(conf.Tracing)
	if err != nil {
		log.Error("Failed to set up OTEL: %s", err)
		os.Exit(1)
	}

	store, closeStore, err := openStorage(conf.Storage)
	if err != nil {
		log.Error("Failed to open %s storage: %s", conf.Storage.Type, err)
		os.Exit(1)
	}

	metrics, err := otelPkg.NewMetrics(openTelemetry.ListenerMeter())
	if err != nil {
		log.Error("Failed to create listener metrics: %s", err)
		os.Exit(1)
	}
	dispatcher, err := newDispatcher(conf.Listeners, metrics)
	if err != nil {
		log.Error("Failed to register listeners: %s", err)
		os.Exit(1)
	}
	if len(dispatcher.Listeners()) == 0 {
		log.Info("No listeners configured, events will be accepted and ignored")
	}

	executor := command.NewExecutor(store, command.WithTriggerHandler(logTriggers()))
	processor := transport.NewProcessor(executor, dispatcher)

	serverOptions := []rest.ServerOption{}
	var subscriber *transport.Subscriber
	if conf.Transport.Enabled {
		pubSub := transport.NewGoChannel(transport.NewLoggerAdapter(nil))
		subscriberOptions := []transport.SubscriberOption{
			transport.WithRetry(conf.Transport.MaxRetries, transport.DefaultInitialInterval, transport.DefaultMaxInterval),
		}
		if conf.Transport.PoisonTopic != "" {
			subscriberOptions = append(subscriberOptions, transport.WithPoisonQueue(pubSub, conf.Transport.PoisonTopic))
		}
		subscriber, err = transport.NewSubscriber(pubSub, conf.Transport.Topic, processor, nil, subscriberOptions...)
		if err != nil {
			log.Error("Failed to create event subscriber: %s", err)
			os.Exit(1)
		}
		go func() {
			if err := subscriber.Run(appContext); err != nil {
				log.Error("Event subscriber stopped: %s", err)
			}
		}()
		<-subscriber.Running()
		serverOptions = append(serverOptions, rest.WithPublisher(transport.NewPublisher(pubSub, conf.Transport.Topic)))
	}

	// Start the public API
	svr := rest.NewServer(conf, store, processor, dispatcher, serverOptions...)
	if _, err := svr.Start(); err != nil {
		log.Error("Failed to start REST server: %s", err)
		os.Exit(1)
	}

	appStop := make(chan os.Signal, 2)
	handleSigterm(appStop, appContext)

	ctxCancel()
	// cleanup
	svr.Stop(context.Background())
	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			log.Error("failed to close event subscriber: %s", err)
		}
	}
	if err := closeStore(); err != nil {
		log.Error("failed to close storage: %s", err)
	}
	openTelemetry.Stop(context.Background())
}

func handleSigterm(appStop chan os.Signal, ctx context.Context) {
	signal.Notify(appStop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	sig := <-appStop
	log.Infof(ctx, "Received %s. Shutting down", sig.String())
}
