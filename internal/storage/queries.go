package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type ExpenseRow struct {
	ID          int64
	UserID      int64
	AmountCents int64
	Category    string
	CreatedAt   string
}

type ActionRow struct {
	ID        int64
	UserID    int64
	Details   string
	CreatedAt string
}

type CategorySumRow struct {
	Category    string
	TotalAmount int64
}

type MonthSumRow struct {
	Month       string
	TotalAmount int64
}

const createExpense = `
INSERT INTO expenses (user_id, amount_cents, category, created_at)
VALUES (?, ?, ?, ?)
RETURNING id`

type CreateExpenseParams struct {
	UserID      int64
	AmountCents int64
	Category    string
	CreatedAt   string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createExpense, arg.UserID, arg.AmountCents, arg.Category, arg.CreatedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpense, id)
	return err
}

// Ties on created_at resolve to the highest id.
const getLatestExpense = `
SELECT id, user_id, amount_cents, category, created_at
FROM expenses
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`

func (q *Queries) GetLatestExpense(ctx context.Context, userID int64) (ExpenseRow, error) {
	row := q.db.QueryRowContext(ctx, getLatestExpense, userID)
	var e ExpenseRow
	err := row.Scan(&e.ID, &e.UserID, &e.AmountCents, &e.Category, &e.CreatedAt)
	return e, err
}

const createActionEntry = `
INSERT INTO action_history (user_id, details, created_at)
VALUES (?, ?, ?)`

type CreateActionEntryParams struct {
	UserID    int64
	Details   string
	CreatedAt string
}

func (q *Queries) CreateActionEntry(ctx context.Context, arg CreateActionEntryParams) error {
	_, err := q.db.ExecContext(ctx, createActionEntry, arg.UserID, arg.Details, arg.CreatedAt)
	return err
}

const pruneActionHistory = `
DELETE FROM action_history
WHERE user_id = ?
  AND id NOT IN (
    SELECT id FROM action_history
    WHERE user_id = ?
    ORDER BY created_at DESC, id DESC
    LIMIT ?
  )`

func (q *Queries) PruneActionHistory(ctx context.Context, userID int64, keep int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, pruneActionHistory, userID, userID, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listActionHistory = `
SELECT id, user_id, details, created_at
FROM action_history
WHERE user_id = ?
ORDER BY created_at DESC, id DESC`

func (q *Queries) ListActionHistory(ctx context.Context, userID int64) ([]ActionRow, error) {
	rows, err := q.db.QueryContext(ctx, listActionHistory, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ActionRow
	for rows.Next() {
		var a ActionRow
		if err := rows.Scan(&a.ID, &a.UserID, &a.Details, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const getDayTotal = `
SELECT COALESCE(SUM(amount_cents), 0)
FROM expenses
WHERE user_id = ? AND created_at LIKE ? || '%'`

func (q *Queries) GetDayTotal(ctx context.Context, userID int64, day string) (int64, error) {
	row := q.db.QueryRowContext(ctx, getDayTotal, userID, day)
	var total int64
	err := row.Scan(&total)
	return total, err
}

const getDayCategorySums = `
SELECT category, SUM(amount_cents) AS total_amount
FROM expenses
WHERE user_id = ? AND created_at LIKE ? || '%'
GROUP BY category`

func (q *Queries) GetDayCategorySums(ctx context.Context, userID int64, day string) ([]CategorySumRow, error) {
	return q.categorySums(ctx, getDayCategorySums, userID, day)
}

const getCategorySums = `
SELECT category, SUM(amount_cents) AS total_amount
FROM expenses
WHERE user_id = ?
GROUP BY category`

func (q *Queries) GetCategorySums(ctx context.Context, userID int64) ([]CategorySumRow, error) {
	return q.categorySums(ctx, getCategorySums, userID)
}

func (q *Queries) categorySums(ctx context.Context, query string, args ...interface{}) ([]CategorySumRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategorySumRow
	for rows.Next() {
		var c CategorySumRow
		if err := rows.Scan(&c.Category, &c.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const getTotal = `SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE user_id = ?`

func (q *Queries) GetTotal(ctx context.Context, userID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, getTotal, userID)
	var total int64
	err := row.Scan(&total)
	return total, err
}

const getMonthlyTotals = `
SELECT substr(created_at, 1, 7) AS month, SUM(amount_cents) AS total_amount
FROM expenses
WHERE user_id = ?
GROUP BY month
ORDER BY month DESC`

func (q *Queries) GetMonthlyTotals(ctx context.Context, userID int64) ([]MonthSumRow, error) {
	rows, err := q.db.QueryContext(ctx, getMonthlyTotals, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthSumRow
	for rows.Next() {
		var m MonthSumRow
		if err := rows.Scan(&m.Month, &m.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const listDistinctUsers = `SELECT DISTINCT user_id FROM expenses ORDER BY user_id`

func (q *Queries) ListDistinctUsers(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listDistinctUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

const getDigestRun = `SELECT last_day FROM digest_runs WHERE name = ?`

func (q *Queries) GetDigestRun(ctx context.Context, name string) (string, error) {
	row := q.db.QueryRowContext(ctx, getDigestRun, name)
	var day string
	err := row.Scan(&day)
	return day, err
}

const upsertDigestRun = `
INSERT INTO digest_runs (name, last_day, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET last_day = excluded.last_day, updated_at = excluded.updated_at`

type UpsertDigestRunParams struct {
	Name      string
	LastDay   string
	UpdatedAt string
}

func (q *Queries) UpsertDigestRun(ctx context.Context, arg UpsertDigestRunParams) error {
	_, err := q.db.ExecContext(ctx, upsertDigestRun, arg.Name, arg.LastDay, arg.UpdatedAt)
	return err
}
