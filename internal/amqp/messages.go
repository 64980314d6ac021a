package amqp

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Notification kinds.
const (
	KindReply  = "reply"
	KindDigest = "digest"
)

var ErrInvalidMessage = errors.New("invalid message")

// ChatMessage is one inbound text typed by a chat user, forwarded by the chat gateway.
type ChatMessage struct {
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	MessageID string    `json:"message_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessageID returns a random id for messages the gateway sent without one.
func NewMessageID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("msg_%d", time.Now().UnixNano())
	}
	return "msg_" + hex.EncodeToString(b)
}

func NewChatMessage(userID int64, text string) *ChatMessage {
	return &ChatMessage{
		UserID:    userID,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func (m *ChatMessage) Validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return errors.Join(ErrInvalidMessage, errors.New("text is empty"))
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ChatMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChatMessageFromJSON decodes and validates an inbound message.
func ChatMessageFromJSON(data []byte) (*ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Notification is outbound text for the chat gateway to deliver to a user.
type Notification struct {
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDigestNotification(userID int64, text string) *Notification {
	return &Notification{
		UserID:    userID,
		Text:      text,
		Kind:      KindDigest,
		Timestamp: time.Now(),
	}
}

// NewReply answers msg with text.
func NewReply(msg *ChatMessage, text string) *Notification {
	return &Notification{
		UserID:    msg.UserID,
		Text:      text,
		Kind:      KindReply,
		ReplyTo:   msg.MessageID,
		Timestamp: time.Now(),
	}
}

func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

func NotificationFromJSON(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
