package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	env "github.com/caarlos0/env/v11"

	"github.com/josh-kwaku/booking-payments/internal/logging"
	"github.com/josh-kwaku/booking-payments/internal/notify"
)

type workerConfig struct {
	AMQPURL        string `env:"AMQP_URL,required,notEmpty"`
	NotifyExchange string `env:"NOTIFY_EXCHANGE" envDefault:"payments"`
	NotifyQueue    string `env:"NOTIFY_QUEUE" envDefault:"payment-notifications"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv         string `env:"APP_ENV" envDefault:"production"`
}

func main() {
	cfg, err := env.ParseAs[workerConfig]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("payments-notifier", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, err := notify.NewConsumer(cfg.AMQPURL, cfg.NotifyExchange, cfg.NotifyQueue,
		[]string{notify.RoutingKeyPaymentCompleted})
	if err != nil {
		slog.Error("failed to connect to message broker", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	deliveries, err := consumer.Deliveries(ctx)
	if err != nil {
		slog.Error("failed to start consuming", "queue", cfg.NotifyQueue, "error", err)
		os.Exit(1)
	}

	worker := notify.NewWorker(notify.LogSender{Logger: logger}, logger)
	worker.Run(ctx, deliveries)
}
