// Package chat maps chat text onto ledger operations and renders the replies.
package chat

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/report"
)

// Ledger is the subset of services.LedgerService the chat surface uses.
type Ledger interface {
	RecordExpense(ctx context.Context, userID int64, rawAmount, rawCategory string) (core.Expense, error)
	TodaySummary(ctx context.Context, userID int64) (core.DaySummary, error)
	FullStats(ctx context.Context, userID int64) (core.Stats, error)
	UndoLast(ctx context.Context, userID int64) (core.Expense, bool, error)
	RecentActions(ctx context.Context, userID int64) ([]core.ActionEntry, error)
}

type Handler struct {
	ledger Ledger
}

func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// Handle answers one message from userID. It always returns reply text;
// failures are logged and rendered as user-facing messages.
func (h *Handler) Handle(ctx context.Context, userID int64, text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return h.command(ctx, userID, commandName(text))
	}
	return h.record(ctx, userID, text)
}

// commandName returns "/today" for "/Today@spend_bot extra".
func commandName(text string) string {
	name := strings.Fields(text)[0]
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func (h *Handler) command(ctx context.Context, userID int64, name string) string {
	switch name {
	case "/start":
		return report.Start()
	case "/help":
		return report.Help()
	case "/today":
		return h.today(ctx, userID)
	case "/stats":
		return h.stats(ctx, userID)
	case "/delete_last", "/undo":
		return h.undo(ctx, userID)
	case "/history":
		return h.history(ctx, userID)
	default:
		return report.Help()
	}
}

// SplitEntry splits "15000 Food court" into amount and category at the first whitespace run.
func SplitEntry(text string) (amount, category string) {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

func (h *Handler) record(ctx context.Context, userID int64, text string) string {
	amount, category := SplitEntry(text)
	e, err := h.ledger.RecordExpense(ctx, userID, amount, category)
	if errors.Is(err, core.ErrInvalidAmount) {
		return report.InvalidFormat()
	}
	if err != nil {
		logFailure(ctx, userID, applog.OpRecord, err)
		return report.Failure("add the expense")
	}

	logger(ctx).InfoContext(ctx, "Expense recorded",
		applog.NewFields().WithUser(userID).WithExpense(e.Amount.Cents, e.Category).ToSlice()...)
	return report.Added(e)
}

func (h *Handler) today(ctx context.Context, userID int64) string {
	summary, err := h.ledger.TodaySummary(ctx, userID)
	if err != nil {
		logFailure(ctx, userID, applog.OpToday, err)
		return report.Failure("load today's expenses")
	}
	return report.Today(summary)
}

func (h *Handler) stats(ctx context.Context, userID int64) string {
	stats, err := h.ledger.FullStats(ctx, userID)
	if err != nil {
		logFailure(ctx, userID, applog.OpStats, err)
		return report.Failure("load statistics")
	}
	return report.Stats(stats)
}

func (h *Handler) undo(ctx context.Context, userID int64) string {
	e, ok, err := h.ledger.UndoLast(ctx, userID)
	if err != nil {
		logFailure(ctx, userID, applog.OpUndo, err)
		return report.Failure("remove the expense")
	}
	if !ok {
		return report.NothingToUndo()
	}
	return report.Undone(e)
}

func (h *Handler) history(ctx context.Context, userID int64) string {
	entries, err := h.ledger.RecentActions(ctx, userID)
	if err != nil {
		logFailure(ctx, userID, applog.OpHistory, err)
		return report.Failure("load recent actions")
	}
	return report.History(entries)
}

func logFailure(ctx context.Context, userID int64, op string, err error) {
	logger(ctx).ErrorContext(ctx, "Chat request failed",
		applog.NewFields().WithUser(userID).WithOperation(op).WithError(err).ToSlice()...)
}

func logger(ctx context.Context) *applog.Logger {
	l := applog.FromContext(ctx)
	if l.Component() != applog.ComponentChat {
		l = l.WithComponent(applog.ComponentChat)
	}
	return l
}
