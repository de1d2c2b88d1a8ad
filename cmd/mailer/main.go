// Command mailer delivers the password reset mail the server queues on
// Kafka when MAIL_PROVIDER=kafka.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"clinic-booking-api/internal/config"
	"clinic-booking-api/internal/logx"
	"clinic-booking-api/internal/notify"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger := logx.New(logx.Config{
		Service: "clinic-mailer",
		Version: version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	if err := cfg.ValidateMailer(); err != nil {
		fatal(logger, "invalid configuration", err)
	}

	mailer, err := notify.NewMailer(cfg.MailerTransport, notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	}, cfg.SendGridAPIKey)
	if err != nil {
		fatal(logger, "mailer", err)
	}

	consumer := notify.NewConsumer(notify.KafkaConfig{
		Broker:   cfg.KafkaBroker,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		Username: cfg.KafkaUsername,
		Password: cfg.KafkaPassword,
	}, notify.NewMailNotifier(mailer, cfg.ResetTokenTTL), logger)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("mailer consuming", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID, "transport", cfg.MailerTransport)
	if err := consumer.Run(ctx); err != nil {
		logger.Error("consumer stopped", "error", err)
	}
	logger.Info("mailer stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
