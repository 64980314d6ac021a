package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"spendlog/internal/core"
	applog "spendlog/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the ledger schema and every read and write against it.
// Each public method runs inside its own transaction.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	path    string
	loc     *time.Location
}

type Option func(*SQLiteRepository)

// WithLocation sets the zone persisted timestamps are read back in. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(r *SQLiteRepository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, wrap("open", fmt.Errorf("create db directory: %w", err))
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, wrap("open", fmt.Errorf("open sqlite database: %w", err))
	}
	// SQLite has a single writer; one owned connection serializes all operations
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, wrap("open", fmt.Errorf("ping database: %w", err))
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		path:    dbPath,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(repo)
	}

	if err := repo.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// InitSchema creates the ledger tables if they are missing.
func (r *SQLiteRepository) InitSchema(ctx context.Context) error {
	if err := RunMigrations(r.path); err != nil {
		return wrap("init schema", err)
	}
	slog.DebugContext(ctx, "Ledger schema ready",
		applog.FieldComponent, applog.ComponentStorage,
		"path", r.path)
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, op string, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, fmt.Errorf("begin tx: %w", err))
	}
	// Rollback after a successful commit is a no-op
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return wrap(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// InsertExpense stores e and records details in the user's action history.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense, details string) (int64, error) {
	if e.Amount.Cents < 0 {
		return 0, wrap("insert expense", core.ErrInvalidAmount)
	}
	ts := core.FormatTimestamp(e.CreatedAt)

	var id int64
	err := r.withTx(ctx, "insert expense", func(q *Queries) error {
		var err error
		id, err = q.CreateExpense(ctx, CreateExpenseParams{
			UserID:      e.UserID,
			AmountCents: e.Amount.Cents,
			Category:    e.Category,
			CreatedAt:   ts,
		})
		if err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		return appendHistory(ctx, q, e.UserID, details, ts)
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		append(applog.NewFields().WithComponent(applog.ComponentStorage).WithUser(e.UserID).
			WithExpense(e.Amount.Cents, e.Category).ToSlice(),
			"id", id,
			"created_at", ts)...)

	return id, nil
}

// AppendActionHistory appends one history row and prunes the user's history,
// both or neither.
func (r *SQLiteRepository) AppendActionHistory(ctx context.Context, userID int64, details string, at time.Time) error {
	return r.withTx(ctx, "append action history", func(q *Queries) error {
		return appendHistory(ctx, q, userID, details, core.FormatTimestamp(at))
	})
}

func appendHistory(ctx context.Context, q *Queries, userID int64, details, ts string) error {
	if err := q.CreateActionEntry(ctx, CreateActionEntryParams{
		UserID:    userID,
		Details:   details,
		CreatedAt: ts,
	}); err != nil {
		return fmt.Errorf("create action entry: %w", err)
	}
	if _, err := q.PruneActionHistory(ctx, userID, core.ActionHistoryLimit); err != nil {
		return fmt.Errorf("prune action history: %w", err)
	}
	return nil
}

// ActionHistory returns the retained history of a user, newest first.
func (r *SQLiteRepository) ActionHistory(ctx context.Context, userID int64) ([]core.ActionEntry, error) {
	var entries []core.ActionEntry
	err := r.withTx(ctx, "list action history", func(q *Queries) error {
		rows, err := q.ListActionHistory(ctx, userID)
		if err != nil {
			return err
		}
		entries = make([]core.ActionEntry, 0, len(rows))
		for _, a := range rows {
			at, err := core.ParseTimestamp(a.CreatedAt, r.loc)
			if err != nil {
				return fmt.Errorf("parse history timestamp %q: %w", a.CreatedAt, err)
			}
			entries = append(entries, core.ActionEntry{
				ID:        a.ID,
				UserID:    a.UserID,
				Details:   a.Details,
				CreatedAt: at,
			})
		}
		return nil
	})
	return entries, err
}

// DaySummary sums the user's expenses whose timestamp starts with day (YYYY-MM-DD).
func (r *SQLiteRepository) DaySummary(ctx context.Context, userID int64, day string) (core.DaySummary, error) {
	summary := core.DaySummary{Day: day}
	err := r.withTx(ctx, "day summary", func(q *Queries) error {
		total, err := q.GetDayTotal(ctx, userID, day)
		if err != nil {
			return fmt.Errorf("get day total: %w", err)
		}
		sums, err := q.GetDayCategorySums(ctx, userID, day)
		if err != nil {
			return fmt.Errorf("get day category sums: %w", err)
		}
		summary.Total = core.Money{Cents: total}
		summary.ByCategory = toCategoryAmounts(sums)
		return nil
	})
	return summary, err
}

// TotalSummary returns all-time per-category totals and the grand total.
func (r *SQLiteRepository) TotalSummary(ctx context.Context, userID int64) ([]core.CategoryAmount, core.Money, error) {
	var (
		byCategory []core.CategoryAmount
		total      core.Money
	)
	err := r.withTx(ctx, "total summary", func(q *Queries) error {
		sums, err := q.GetCategorySums(ctx, userID)
		if err != nil {
			return fmt.Errorf("get category sums: %w", err)
		}
		t, err := q.GetTotal(ctx, userID)
		if err != nil {
			return fmt.Errorf("get total: %w", err)
		}
		byCategory = toCategoryAmounts(sums)
		total = core.Money{Cents: t}
		return nil
	})
	return byCategory, total, err
}

// MonthlyTotals returns one row per YYYY-MM month, newest first.
func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, userID int64) ([]core.MonthTotal, error) {
	var months []core.MonthTotal
	err := r.withTx(ctx, "monthly totals", func(q *Queries) error {
		rows, err := q.GetMonthlyTotals(ctx, userID)
		if err != nil {
			return fmt.Errorf("get monthly totals: %w", err)
		}
		months = make([]core.MonthTotal, 0, len(rows))
		for _, m := range rows {
			months = append(months, core.MonthTotal{Month: m.Month, Total: core.Money{Cents: m.TotalAmount}})
		}
		return nil
	})
	return months, err
}

// DeleteLatestExpense removes the user's most recent expense and logs the
// deletion to the action history. ok is false when there was nothing to delete.
func (r *SQLiteRepository) DeleteLatestExpense(ctx context.Context, userID int64, at time.Time, details func(core.Expense) string) (deleted core.Expense, ok bool, err error) {
	err = r.withTx(ctx, "delete latest expense", func(q *Queries) error {
		row, err := q.GetLatestExpense(ctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get latest expense: %w", err)
		}

		createdAt, err := core.ParseTimestamp(row.CreatedAt, r.loc)
		if err != nil {
			return fmt.Errorf("parse expense timestamp %q: %w", row.CreatedAt, err)
		}
		deleted = core.Expense{
			ID:        row.ID,
			UserID:    row.UserID,
			Amount:    core.Money{Cents: row.AmountCents},
			Category:  row.Category,
			CreatedAt: createdAt,
		}

		if err := q.DeleteExpense(ctx, row.ID); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		ok = true
		return appendHistory(ctx, q, userID, details(deleted), core.FormatTimestamp(at))
	})
	if err != nil {
		return core.Expense{}, false, err
	}

	if ok {
		slog.InfoContext(ctx, "Expense deleted from SQLite",
			append(applog.NewFields().WithComponent(applog.ComponentStorage).WithUser(userID).
				WithExpense(deleted.Amount.Cents, deleted.Category).ToSlice(),
				"id", deleted.ID)...)
	}
	return deleted, ok, nil
}

// DistinctUsers lists every user with at least one stored expense.
func (r *SQLiteRepository) DistinctUsers(ctx context.Context) ([]int64, error) {
	var users []int64
	err := r.withTx(ctx, "list users", func(q *Queries) error {
		var err error
		users, err = q.ListDistinctUsers(ctx)
		return err
	})
	return users, err
}

// LastDigestDay returns the last day the named digest fired, or "" if never.
func (r *SQLiteRepository) LastDigestDay(ctx context.Context, name string) (string, error) {
	var day string
	err := r.withTx(ctx, "get digest run", func(q *Queries) error {
		var err error
		day, err = q.GetDigestRun(ctx, name)
		if errors.Is(err, sql.ErrNoRows) {
			day = ""
			return nil
		}
		return err
	})
	return day, err
}

// SaveDigestDay records day as the last day the named digest fired.
func (r *SQLiteRepository) SaveDigestDay(ctx context.Context, name, day string, at time.Time) error {
	return r.withTx(ctx, "save digest run", func(q *Queries) error {
		return q.UpsertDigestRun(ctx, UpsertDigestRunParams{
			Name:      name,
			LastDay:   day,
			UpdatedAt: core.FormatTimestamp(at),
		})
	})
}

func toCategoryAmounts(rows []CategorySumRow) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(rows))
	for _, cs := range rows {
		out = append(out, core.CategoryAmount{
			Name:   cs.Category,
			Amount: core.Money{Cents: cs.TotalAmount},
		})
	}
	return out
}
