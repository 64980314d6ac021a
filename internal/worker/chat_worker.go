package worker

import (
	"context"
	"fmt"

	"spendlog/internal/amqp"
	applog "spendlog/internal/log"
	"spendlog/internal/report"
)

// Responder turns one chat message into reply text.
type Responder interface {
	Handle(ctx context.Context, userID int64, text string) string
}

// Publisher delivers a notification to the chat gateway.
type Publisher interface {
	Publish(ctx context.Context, n *amqp.Notification) error
}

// Limiter decides whether a user may send another message; *ratelimit.Limiter satisfies it.
type Limiter interface {
	Allow(userID int64) bool
}

// ChatWorker answers chat messages consumed from AMQP.
type ChatWorker struct {
	responder Responder
	publisher Publisher
	limiter   Limiter
}

// NewChatWorker builds a worker; a nil limiter lets every message through.
func NewChatWorker(responder Responder, publisher Publisher, limiter Limiter) *ChatWorker {
	return &ChatWorker{
		responder: responder,
		publisher: publisher,
		limiter:   limiter,
	}
}

// HandleChatMessage processes a single chat message from AMQP and publishes the reply.
func (w *ChatWorker) HandleChatMessage(ctx context.Context, msg *amqp.ChatMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = amqp.NewMessageID()
	}
	logger := applog.FromContext(ctx).With(applog.FieldMessageID, msg.MessageID)
	ctx = applog.WithContext(ctx, logger)
	logger.DebugContext(ctx, "Processing chat message", applog.FieldUserID, msg.UserID)

	var reply string
	if w.limiter != nil && !w.limiter.Allow(msg.UserID) {
		logger.WarnContext(ctx, "Chat message rate limited", applog.FieldUserID, msg.UserID)
		reply = report.TooManyMessages()
	} else {
		reply = w.responder.Handle(ctx, msg.UserID, msg.Text)
	}

	if err := w.publisher.Publish(ctx, amqp.NewReply(msg, reply)); err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}
