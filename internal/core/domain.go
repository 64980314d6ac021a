package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultCategory is used when an entry carries no category text.
	DefaultCategory = "other"

	// ActionHistoryLimit is how many action history rows are kept per user.
	ActionHistoryLimit = 5

	TimestampLayout = "2006-01-02 15:04:05"
	DayLayout       = "2006-01-02"
	MonthLayout     = "2006-01"
)

type (
	Money struct {
		Cents int64
	}

	Expense struct {
		ID        int64 // Database ID, zero until stored
		UserID    int64
		Amount    Money
		Category  string
		CreatedAt time.Time
	}

	// ActionEntry is one row of the bounded per-user action history.
	ActionEntry struct {
		ID        int64
		UserID    int64
		Details   string
		CreatedAt time.Time
	}

	// TriggerTime is a wall-clock hour and minute.
	TriggerTime struct {
		Hour   int
		Minute int
	}
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidTrigger = errors.New("invalid trigger time")
)

// NormalizeCategory lowercases and trims a raw category, falling back to DefaultCategory.
func NormalizeCategory(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	if c == "" {
		return DefaultCategory
	}
	return c
}

// FormatTimestamp renders t in the persisted second-precision layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp reads a persisted timestamp back in the given location.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(TimestampLayout, s, loc)
}

// DayKey returns the calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return errors.New("empty category")
	}
	if e.CreatedAt.IsZero() {
		return errors.New("timestamp cannot be zero")
	}
	return nil
}

// ParseTriggerTime parses an HH:MM string.
func ParseTriggerTime(s string) (TriggerTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TriggerTime{}, fmt.Errorf("%w: %q", ErrInvalidTrigger, s)
	}
	return TriggerTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On returns the trigger instant on the calendar day of t, in t's location.
func (tt TriggerTime) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, tt.Hour, tt.Minute, 0, 0, t.Location())
}

func (tt TriggerTime) String() string {
	return fmt.Sprintf("%02d:%02d", tt.Hour, tt.Minute)
}
