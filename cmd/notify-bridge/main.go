package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/escrow-marketplace/backend/internal/config"
	"github.com/escrow-marketplace/backend/internal/db"
	"github.com/escrow-marketplace/backend/internal/events"
	"github.com/escrow-marketplace/backend/internal/notify"
	"go.uber.org/zap"
)

// Notify bridge subscribes to every component stream and forwards events to
// NOTIFY_WEBHOOK_URL.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.NotifyWebhookURL == "" {
		log.Fatal("NOTIFY_WEBHOOK_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	webhook := notify.NewWebhookClient(cfg.NotifyWebhookURL, cfg.NotifyTimeout, cfg.NotifyEventTypes, log)

	for _, stream := range events.AllStreams {
		err := subscriber.Subscribe(ctx, stream, func(event events.Event) {
			if err := webhook.Forward(ctx, stream, event); err != nil {
				log.Warn("failed to forward event",
					zap.String("stream", stream),
					zap.String("type", event.Type),
					zap.Error(err),
				)
			}
		})
		if err != nil {
			log.Fatal("failed to subscribe", zap.String("stream", stream), zap.Error(err))
		}
	}

	log.Info("notify-bridge started", zap.Int("streams", len(events.AllStreams)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
