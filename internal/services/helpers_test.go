package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spendlog/internal/storage"
)

var tashkent = time.FixedZone("UTC+5", 5*60*60)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRepository(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"), storage.WithLocation(tashkent))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

type sentMessage struct {
	UserID int64
	Text   string
}

// recordingNotifier collects notifications and can be told to fail for some users.
type recordingNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	fail   map[int64]error
	panics map[int64]bool
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, text string) error {
	if n.panics[userID] {
		panic("notifier exploded")
	}
	if err := n.fail[userID]; err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{UserID: userID, Text: text})
	return nil
}

func (n *recordingNotifier) Sent() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

func (n *recordingNotifier) CountFor(userID int64) int {
	count := 0
	for _, m := range n.Sent() {
		if m.UserID == userID {
			count++
		}
	}
	return count
}
