package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// PasswordResetEvent is the queued form of one reset mail.
type PasswordResetEvent struct {
	To          string    `json:"to"`
	Link        string    `json:"link"`
	RequestedAt time.Time `json:"requested_at"`
}

type KafkaConfig struct {
	Broker   string
	Topic    string
	GroupID  string
	Username string // SASL/PLAIN over TLS when set
	Password string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes reset events synchronously, waiting for every
// in-sync replica, so a failed publish surfaces to the caller.
type KafkaNotifier struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaNotifier(cfg KafkaConfig) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: 10 * time.Second,
	}
	if cfg.Username != "" {
		w.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
			TLS:  &tls.Config{},
		}
	}
	return &KafkaNotifier{writer: w, now: time.Now}
}

func (k *KafkaNotifier) SendPasswordReset(ctx context.Context, to, link string) error {
	value, err := json.Marshal(PasswordResetEvent{To: to, Link: link, RequestedAt: k.now().UTC()})
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(to), Value: value}); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error { return k.writer.Close() }

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer drains reset events and delivers them through a Notifier.
type Consumer struct {
	reader   messageReader
	notifier Notifier
	logger   *slog.Logger
}

func NewConsumer(cfg KafkaConfig, n Notifier, logger *slog.Logger) *Consumer {
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	if cfg.Username != "" {
		dialer.TLS = &tls.Config{}
		dialer.SASLMechanism = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Broker},
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})
	return &Consumer{reader: reader, notifier: n, logger: logger}
}

// Run consumes until ctx is cancelled. Each message is committed once
// handled, delivered or not; there is no redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			c.logger.Error("kafka fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var ev PasswordResetEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.To == "" || ev.Link == "" {
		c.logger.Warn("dropping malformed reset event", "offset", msg.Offset)
		return
	}
	if err := c.notifier.SendPasswordReset(ctx, ev.To, ev.Link); err != nil {
		c.logger.Error("reset mail delivery failed", "offset", msg.Offset, "error", err)
		return
	}
	c.logger.Info("reset mail delivered", "offset", msg.Offset)
}

func (c *Consumer) Close() error { return c.reader.Close() }
