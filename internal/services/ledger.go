package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
)

// LedgerStore is the persistence the ledger needs; *storage.SQLiteRepository satisfies it.
type LedgerStore interface {
	InsertExpense(ctx context.Context, e core.Expense, details string) (int64, error)
	DaySummary(ctx context.Context, userID int64, day string) (core.DaySummary, error)
	TotalSummary(ctx context.Context, userID int64) ([]core.CategoryAmount, core.Money, error)
	MonthlyTotals(ctx context.Context, userID int64) ([]core.MonthTotal, error)
	DeleteLatestExpense(ctx context.Context, userID int64, at time.Time, details func(core.Expense) string) (core.Expense, bool, error)
	DistinctUsers(ctx context.Context) ([]int64, error)
	ActionHistory(ctx context.Context, userID int64) ([]core.ActionEntry, error)
}

// LedgerService records expenses and answers spending queries.
// Nothing is cached: every call reads storage.
type LedgerService struct {
	store LedgerStore
	clock Clock
}

func NewLedgerService(store LedgerStore, clock Clock) *LedgerService {
	if clock == nil {
		clock = SystemClock(time.Local)
	}
	return &LedgerService{
		store: store,
		clock: clock,
	}
}

// RecordExpense parses and stores one expense for userID.
// Bad amounts fail with core.ErrInvalidAmount and store nothing.
func (s *LedgerService) RecordExpense(ctx context.Context, userID int64, rawAmount, rawCategory string) (core.Expense, error) {
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		slog.WarnContext(ctx, "Rejected expense input",
			applog.NewFields().WithComponent(applog.ComponentLedger).WithUser(userID).
				WithOperation(applog.OpRecord).WithError(err).ToSlice()...)
		return core.Expense{}, err
	}

	e := core.Expense{
		UserID:    userID,
		Amount:    amount,
		Category:  core.NormalizeCategory(rawCategory),
		CreatedAt: s.clock.Now(),
	}
	if err := e.Validate(); err != nil {
		slog.WarnContext(ctx, "Rejected expense",
			applog.NewFields().WithComponent(applog.ComponentLedger).WithUser(userID).
				WithOperation(applog.OpRecord).WithError(err).ToSlice()...)
		return core.Expense{}, fmt.Errorf("record expense: %w", err)
	}

	id, err := s.store.InsertExpense(ctx, e, addedDetails(e))
	if err != nil {
		return core.Expense{}, fmt.Errorf("record expense: %w", err)
	}
	e.ID = id

	return e, nil
}

// TodaySummary returns the spending of the current calendar day.
func (s *LedgerService) TodaySummary(ctx context.Context, userID int64) (core.DaySummary, error) {
	return s.DaySummary(ctx, userID, s.clock.Now())
}

// DaySummary returns the spending of the calendar day containing day.
func (s *LedgerService) DaySummary(ctx context.Context, userID int64, day time.Time) (core.DaySummary, error) {
	summary, err := s.store.DaySummary(ctx, userID, core.DayKey(day))
	if err != nil {
		return core.DaySummary{}, fmt.Errorf("day summary: %w", err)
	}
	return summary, nil
}

// FullStats returns all-time category totals, the grand total and monthly totals, newest first.
func (s *LedgerService) FullStats(ctx context.Context, userID int64) (core.Stats, error) {
	byCategory, total, err := s.store.TotalSummary(ctx, userID)
	if err != nil {
		return core.Stats{}, fmt.Errorf("full stats: %w", err)
	}
	monthly, err := s.store.MonthlyTotals(ctx, userID)
	if err != nil {
		return core.Stats{}, fmt.Errorf("full stats: %w", err)
	}
	return core.Stats{
		ByCategory: byCategory,
		Total:      total,
		Monthly:    monthly,
	}, nil
}

// UndoLast deletes the user's most recent expense.
// ok is false when there was nothing to undo, which is not an error.
func (s *LedgerService) UndoLast(ctx context.Context, userID int64) (core.Expense, bool, error) {
	deleted, ok, err := s.store.DeleteLatestExpense(ctx, userID, s.clock.Now(), removedDetails)
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("undo last expense: %w", err)
	}
	return deleted, ok, nil
}

// KnownUsers lists every user who has recorded at least one expense.
func (s *LedgerService) KnownUsers(ctx context.Context) ([]int64, error) {
	users, err := s.store.DistinctUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("known users: %w", err)
	}
	return users, nil
}

// RecentActions returns the bounded action history of a user, newest first.
func (s *LedgerService) RecentActions(ctx context.Context, userID int64) ([]core.ActionEntry, error) {
	entries, err := s.store.ActionHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recent actions: %w", err)
	}
	return entries, nil
}

func addedDetails(e core.Expense) string {
	return fmt.Sprintf("Added expense: %s sum to category %s", e.Amount, e.Category)
}

func removedDetails(e core.Expense) string {
	return fmt.Sprintf("Removed expense: %s sum from category %s", e.Amount, e.Category)
}
