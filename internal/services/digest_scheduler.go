package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/report"
)

// DigestReader is the ledger view the scheduler needs.
type DigestReader interface {
	KnownUsers(ctx context.Context) ([]int64, error)
	DaySummary(ctx context.Context, userID int64, day time.Time) (core.DaySummary, error)
}

// DigestState persists the last day a digest fired so restarts neither skip nor repeat it.
type DigestState interface {
	LastDigestDay(ctx context.Context, name string) (string, error)
	SaveDigestDay(ctx context.Context, name, day string, at time.Time) error
}

// Notifier delivers rendered text to a chat user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID int64, text string) error

func (f NotifierFunc) Notify(ctx context.Context, userID int64, text string) error {
	return f(ctx, userID, text)
}

// DigestConfig holds configuration for the daily digest
type DigestConfig struct {
	// Name keys the persisted state (default: "daily")
	Name string

	// At is the wall-clock trigger in Location (default: 23:59)
	At core.TriggerTime

	// Location is the zone calendar days are counted in (default: fixed UTC+5)
	Location *time.Location

	// PollInterval is how often Run checks the clock (default: 60s)
	PollInterval time.Duration

	// Render turns a day summary into the message text (default: report.Digest)
	Render func(core.DaySummary) string
}

// DefaultDigestConfig fires at 23:59 UTC+5, i.e. 18:59 UTC.
func DefaultDigestConfig() DigestConfig {
	return DigestConfig{
		Name:         "daily",
		At:           core.TriggerTime{Hour: 23, Minute: 59},
		Location:     time.FixedZone("UTC+5", 5*60*60),
		PollInterval: 60 * time.Second,
		Render:       report.Digest,
	}
}

// DigestScheduler sends every known user a summary of their day, once per calendar day.
type DigestScheduler struct {
	ledger   DigestReader
	state    DigestState
	notifier Notifier
	clock    Clock
	config   DigestConfig

	mu sync.Mutex
}

func NewDigestScheduler(ledger DigestReader, state DigestState, notifier Notifier, clock Clock, config DigestConfig) *DigestScheduler {
	defaults := DefaultDigestConfig()
	if config.Name == "" {
		config.Name = defaults.Name
	}
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Render == nil {
		config.Render = defaults.Render
	}
	if clock == nil {
		clock = SystemClock(config.Location)
	}
	return &DigestScheduler{
		ledger:   ledger,
		state:    state,
		notifier: notifier,
		clock:    clock,
		config:   config,
	}
}

// Run checks the clock immediately and then every PollInterval until ctx is cancelled.
func (s *DigestScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Digest scheduler started",
		"trigger", s.config.At.String(),
		"location", s.config.Location.String(),
		"poll_interval", s.config.PollInterval)

	s.tickAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Digest scheduler stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			s.tickAndLog(ctx)
		}
	}
}

func (s *DigestScheduler) tickAndLog(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil {
		slog.ErrorContext(ctx, "Digest tick failed",
			applog.NewFields().WithComponent(applog.ComponentScheduler).WithError(err).ToSlice()...)
	}
}

// Tick fires the digest if today's trigger instant has passed and today has not fired yet.
// It reports whether the digest fired.
func (s *DigestScheduler) Tick(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().In(s.config.Location)
	if !isDigestDue(now, s.config.At) {
		return false, nil
	}

	today := core.DayKey(now)
	last, err := s.state.LastDigestDay(ctx, s.config.Name)
	if err != nil {
		return false, fmt.Errorf("load digest state: %w", err)
	}
	// YYYY-MM-DD compares chronologically; >= also covers a clock stepping back
	if last >= today {
		return false, nil
	}

	users, err := s.ledger.KnownUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("list digest recipients: %w", err)
	}

	// Mark first: a crash mid fan-out loses the rest of today rather than repeating it
	if err := s.state.SaveDigestDay(ctx, s.config.Name, today, now); err != nil {
		return false, fmt.Errorf("save digest state: %w", err)
	}

	sent := s.fanOut(ctx, users, now)

	slog.InfoContext(ctx, "Daily digest complete",
		applog.FieldDay, today,
		"recipients", len(users),
		"sent", sent)

	return true, nil
}

// isDigestDue reports whether the trigger instant of now's calendar day has passed.
func isDigestDue(now time.Time, at core.TriggerTime) bool {
	return !now.Before(at.On(now))
}

func (s *DigestScheduler) fanOut(ctx context.Context, users []int64, now time.Time) int {
	sent := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			slog.WarnContext(ctx, "Digest fan-out interrupted", "reason", ctx.Err(), "sent", sent)
			break
		}

		summary, err := s.ledger.DaySummary(ctx, userID, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to compute digest",
				applog.NewFields().WithUser(userID).WithOperation(applog.OpDigest).WithError(err).ToSlice()...)
			continue
		}
		if summary.IsEmpty() {
			continue
		}

		if err := s.notify(ctx, userID, s.config.Render(summary)); err != nil {
			slog.ErrorContext(ctx, "Failed to send digest",
				applog.NewFields().WithUser(userID).WithOperation(applog.OpNotify).WithError(err).ToSlice()...)
			continue
		}
		sent++
	}
	return sent
}

// notify isolates one recipient: a panicking notifier is reported as an error.
func (s *DigestScheduler) notify(ctx context.Context, userID int64, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return s.notifier.Notify(ctx, userID, text)
}
