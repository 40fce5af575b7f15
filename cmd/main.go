package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"notify-lab/api"
	"notify-lab/auth"
	"notify-lab/chat"
	"notify-lab/internal/logs"
	"notify-lab/observability"
	"notify-lab/relay"
	"notify-lab/repositories"
	"notify-lab/runtime"
	"notify-lab/runtime/workers"
	"notify-lab/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, serves until a signal or a server error,
// and funnels all failures into one returned error.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Redis
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	defer func() {
		log.Info("Closing Redis client...")
		_ = client.Close()
	}()

	pingCtx, cancel := context.WithTimeout(context.Background(), config.StoreTimeout)
	err := client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", config.RedisAddr, err)
	}

	// 3. Repositories & registries
	broker := repositories.NewBroker(client, log)
	mailbox := repositories.NewMailbox(client, log, config.MailboxCapacity, config.MailboxTTL)
	readState := repositories.NewReadState(client, log, config.ReadStateTTL)

	connections := runtime.NewConnectionRegistry(log)
	rooms := runtime.NewRoomRegistry(log)
	directory := chat.NewDirectory(log)
	dispatcher := chat.NewDispatcher(log, rooms, directory)

	// 4. Relay & services
	metrics := observability.NewRelayMetrics(prometheus.DefaultRegisterer)
	publisher := relay.NewPublisher(log, broker, mailbox, services.SampleNames{},
		config.BulkPublishRate, config.BulkPublishBurst, config.StoreTimeout)
	subscriber := relay.NewSubscriber(log, broker, connections, metrics)
	feed := services.NewFeedService(log, mailbox, readState, config.PollLimit)
	tokens := auth.NewTokenService(config.JWTSecret, config.AuthTokenDuration)

	// 5. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval, config.RestartMaxInterval)
	sup.Add(subscriber,
		workers.NewRoomReaper(log, directory, rooms, config.RoomReapInterval, config.RoomIdleTimeout))

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 7. HTTP server
	server := api.NewServer(log, tokens, publisher, subscriber, feed,
		connections, dispatcher, directory, broker, config.StreamLifetime)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Handler()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown did not drain cleanly", "error", err)
	}
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
