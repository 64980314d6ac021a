package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlog/internal/amqp"
	applog "spendlog/internal/log"
	"spendlog/internal/ratelimit"
	"spendlog/internal/report"
)

type echoResponder struct {
	calls []string
}

func (r *echoResponder) Handle(_ context.Context, userID int64, text string) string {
	r.calls = append(r.calls, text)
	return "echo: " + text
}

type capturePublisher struct {
	err  error
	sent []*amqp.Notification
}

func (p *capturePublisher) Publish(_ context.Context, n *amqp.Notification) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, n)
	return nil
}

func TestChatWorker_PublishesReply(t *testing.T) {
	responder := &echoResponder{}
	publisher := &capturePublisher{}
	w := NewChatWorker(responder, publisher, nil)

	msg := amqp.NewChatMessage(77, "/today")
	msg.MessageID = "m-1"
	require.NoError(t, w.HandleChatMessage(context.Background(), msg))

	assert.Equal(t, []string{"/today"}, responder.calls)
	require.Len(t, publisher.sent, 1)
	assert.Equal(t, int64(77), publisher.sent[0].UserID)
	assert.Equal(t, "echo: /today", publisher.sent[0].Text)
	assert.Equal(t, amqp.KindReply, publisher.sent[0].Kind)
	assert.Equal(t, "m-1", publisher.sent[0].ReplyTo)
}

func TestChatWorker_PublishFailure(t *testing.T) {
	broker := errors.New("circuit breaker is open")
	w := NewChatWorker(&echoResponder{}, &capturePublisher{err: broker}, nil)

	err := w.HandleChatMessage(context.Background(), amqp.NewChatMessage(1, "100 food"))
	assert.ErrorIs(t, err, broker)
}

type loggingResponder struct{}

func (loggingResponder) Handle(ctx context.Context, _ int64, _ string) string {
	applog.FromContext(ctx).InfoContext(ctx, "handling")
	return "ok"
}

func TestChatWorker_RequestLoggerCarriesMessageID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Output: &buf})
	ctx := applog.WithContext(context.Background(), logger)

	msg := amqp.NewChatMessage(5, "/stats")
	msg.MessageID = "m-42"
	require.NoError(t, NewChatWorker(loggingResponder{}, &capturePublisher{}, nil).HandleChatMessage(ctx, msg))

	assert.Contains(t, buf.String(), "message_id=m-42")
}

func TestChatWorker_RateLimitedUserGetsNotice(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{PerMinute: 2})
	t.Cleanup(limiter.Stop)

	responder := &echoResponder{}
	publisher := &capturePublisher{}
	w := NewChatWorker(responder, publisher, limiter)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.HandleChatMessage(context.Background(), amqp.NewChatMessage(3, "100 food")))
	}
	require.NoError(t, w.HandleChatMessage(context.Background(), amqp.NewChatMessage(4, "/today")))

	assert.Len(t, responder.calls, 3, "the third message from user 3 never reaches the ledger")
	require.Len(t, publisher.sent, 4)
	assert.Equal(t, report.TooManyMessages(), publisher.sent[2].Text)
	assert.Equal(t, "echo: /today", publisher.sent[3].Text)
}

func TestChatWorker_AssignsMissingMessageID(t *testing.T) {
	publisher := &capturePublisher{}
	msg := amqp.NewChatMessage(8, "/help")
	require.NoError(t, NewChatWorker(&echoResponder{}, publisher, nil).HandleChatMessage(context.Background(), msg))

	require.Len(t, publisher.sent, 1)
	assert.Regexp(t, `^msg_[0-9a-f]{16}$`, publisher.sent[0].ReplyTo)
	assert.Equal(t, msg.MessageID, publisher.sent[0].ReplyTo)
}
