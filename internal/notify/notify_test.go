package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/require"
)

func TestResetLink(t *testing.T) {
	require.Equal(t, "http://app.test/reset-password?token=abc123",
		ResetLink("http://app.test/", "abc123"))
	require.Equal(t, "http://app.test/reset-password?token=a%2Bb%3D",
		ResetLink("http://app.test", "a+b="))
}

func TestResetEmailBody(t *testing.T) {
	body := ResetEmailBody("http://app.test/reset-password?token=x", 24*time.Hour)
	require.Contains(t, body, "http://app.test/reset-password?token=x\n")
	require.Contains(t, body, "expires in 24 hours")

	require.Contains(t, ResetEmailBody("l", time.Hour), "expires in 1 hour ")
	require.Contains(t, ResetEmailBody("l", 30*time.Minute), "expires in 30 minutes")
}

type recordingMailer struct {
	sent []Mail
	err  error
}

func (r *recordingMailer) Send(_ context.Context, m Mail) error {
	r.sent = append(r.sent, m)
	return r.err
}

func TestMailNotifier(t *testing.T) {
	m := &recordingMailer{}
	n := NewMailNotifier(m, 24*time.Hour)

	require.NoError(t, n.SendPasswordReset(context.Background(), "jane@example.com", "http://link"))
	require.Len(t, m.sent, 1)
	require.Equal(t, "jane@example.com", m.sent[0].To)
	require.Equal(t, ResetSubject, m.sent[0].Subject)
	require.Contains(t, m.sent[0].Text, "http://link")

	m.err = errors.New("smtp down")
	require.Error(t, n.SendPasswordReset(context.Background(), "jane@example.com", "http://link"))
}

func TestLogNotifierMasksRecipient(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.SendPasswordReset(context.Background(), "jane@example.com", "http://link"))
	require.Contains(t, buf.String(), "j***@example.com")
	require.NotContains(t, buf.String(), "jane@")
}

func TestLogNotifierKeepsTokenOutOfInfoLogs(t *testing.T) {
	link := ResetLink("http://app.test", "RAWTOKEN123")

	var info bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo})))
	require.NoError(t, n.SendPasswordReset(context.Background(), "jane@example.com", link))
	require.Contains(t, info.String(), "password reset link issued")
	require.NotContains(t, info.String(), "RAWTOKEN123")

	var debug bytes.Buffer
	n = NewLogNotifier(slog.New(slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug})))
	require.NoError(t, n.SendPasswordReset(context.Background(), "jane@example.com", link))
	require.Contains(t, debug.String(), "RAWTOKEN123")
}

func TestSMTPMessage(t *testing.T) {
	s := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 2525, From: "no-reply@clinic.test", FromName: "Clinic"})
	msg := s.message(Mail{To: "jane@example.com", Subject: ResetSubject, Text: "hello"})

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "To: jane@example.com")
	require.Contains(t, out, "no-reply@clinic.test")
	require.Contains(t, out, "hello")
}

func TestSMTPSendHonoursCancelledContext(t *testing.T) {
	s := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Send(ctx, Mail{To: "x@y.z"}), context.Canceled)
}

type fakeSendClient struct {
	status int
	err    error
	got    *mail.SGMailV3
}

func (f *fakeSendClient) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.got = m
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridMailer(t *testing.T) {
	fake := &fakeSendClient{status: 202}
	s := &SendGridMailer{client: fake, from: "no-reply@clinic.test", fromName: "Clinic"}

	require.NoError(t, s.Send(context.Background(), Mail{To: "jane@example.com", Subject: "s", Text: "t"}))
	require.Equal(t, "s", fake.got.Subject)
	require.Equal(t, "no-reply@clinic.test", fake.got.From.Address)

	fake.status = 401
	require.ErrorContains(t, s.Send(context.Background(), Mail{To: "jane@example.com"}), "401")

	fake.err = errors.New("dial tcp: refused")
	require.Error(t, s.Send(context.Background(), Mail{To: "jane@example.com"}))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaNotifierPublishes(t *testing.T) {
	w := &fakeWriter{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	k := &KafkaNotifier{writer: w, now: func() time.Time { return at }}

	require.NoError(t, k.SendPasswordReset(context.Background(), "jane@example.com", "http://link"))
	require.Len(t, w.msgs, 1)
	require.Equal(t, "jane@example.com", string(w.msgs[0].Key))

	var ev PasswordResetEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	require.Equal(t, "jane@example.com", ev.To)
	require.Equal(t, "http://link", ev.Link)
	require.True(t, at.Equal(ev.RequestedAt))

	w.err = errors.New("broker unavailable")
	require.ErrorContains(t, k.SendPasswordReset(context.Background(), "jane@example.com", "http://link"), "broker unavailable")
}

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	drained   chan struct{}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	if len(f.queue) == 0 && f.drained != nil {
		close(f.drained)
		f.drained = nil
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

type recordingNotifier struct {
	mu   sync.Mutex
	to   []string
	fail string
}

func (r *recordingNotifier) SendPasswordReset(_ context.Context, to, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if to == r.fail {
		return errors.New("rejected")
	}
	r.to = append(r.to, to)
	return nil
}

func TestConsumerDeliversAndCommits(t *testing.T) {
	event := func(to string) []byte {
		b, _ := json.Marshal(PasswordResetEvent{To: to, Link: "http://link"})
		return b
	}
	drained := make(chan struct{})
	reader := &fakeReader{
		queue: []kafka.Message{
			{Offset: 1, Value: event("a@example.com")},
			{Offset: 2, Value: []byte("not json")},
			{Offset: 3, Value: event("bounce@example.com")},
			{Offset: 4, Value: event("b@example.com")},
		},
		drained: drained,
	}
	n := &recordingNotifier{fail: "bounce@example.com"}
	c := &Consumer{reader: reader, notifier: n, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, []string{"a@example.com", "b@example.com"}, n.to)
	require.Equal(t, []int64{1, 2, 3, 4}, reader.committed)
}

func TestNewMailer(t *testing.T) {
	m, err := NewMailer("smtp", SMTPConfig{Host: "mail.test", Port: 25, From: "a@x.com"}, "")
	require.NoError(t, err)
	require.IsType(t, &SMTPMailer{}, m)

	m, err = NewMailer("sendgrid", SMTPConfig{From: "a@x.com"}, "key")
	require.NoError(t, err)
	require.IsType(t, &SendGridMailer{}, m)

	_, err = NewMailer("carrier-pigeon", SMTPConfig{}, "")
	require.Error(t, err)
}
