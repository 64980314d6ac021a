package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spendlog/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var testLoc = time.FixedZone("UTC+5", 5*3600)

type RepositoryTestSuite struct {
	suite.Suite
	ctx  context.Context
	path string
	repo *SQLiteRepository
}

func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.path = filepath.Join(s.T().TempDir(), "data", "ledger.db")
	repo, err := NewSQLiteRepository(s.path, WithLocation(testLoc))
	require.NoError(s.T(), err, "failed to create test database")
	s.repo = repo
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) at(day string, clock string) time.Time {
	t, err := time.ParseInLocation(core.TimestampLayout, day+" "+clock, testLoc)
	require.NoError(s.T(), err)
	return t
}

func (s *RepositoryTestSuite) insert(userID int64, cents int64, category string, at time.Time) int64 {
	id, err := s.repo.InsertExpense(s.ctx, core.Expense{
		UserID:    userID,
		Amount:    core.Money{Cents: cents},
		Category:  category,
		CreatedAt: at,
	}, fmt.Sprintf("added %d to %s", cents, category))
	require.NoError(s.T(), err)
	return id
}

func (s *RepositoryTestSuite) TestInitSchemaIsIdempotent() {
	require.NoError(s.T(), s.repo.InitSchema(s.ctx))
	require.NoError(s.T(), s.repo.InitSchema(s.ctx))

	s.insert(1, 100, "food", s.at("2024-03-01", "10:00:00"))
	require.NoError(s.T(), s.repo.Close())

	reopened, err := NewSQLiteRepository(s.path, WithLocation(testLoc))
	require.NoError(s.T(), err)
	s.repo = reopened

	users, err := s.repo.DistinctUsers(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []int64{1}, users, "data must survive a second schema init")
}

func (s *RepositoryTestSuite) TestInsertExpenseAssignsIncreasingIDs() {
	first := s.insert(1, 100, "food", s.at("2024-03-01", "10:00:00"))
	second := s.insert(1, 200, "food", s.at("2024-03-01", "10:00:00"))
	assert.Greater(s.T(), second, first)
}

func (s *RepositoryTestSuite) TestDaySummaryMatchesCalendarDay() {
	s.insert(1, 1000, "food", s.at("2024-03-01", "00:00:00"))
	s.insert(1, 2500, "food", s.at("2024-03-01", "12:30:00"))
	s.insert(1, 700, "taxi", s.at("2024-03-01", "23:59:59"))
	s.insert(1, 9900, "food", s.at("2024-03-02", "00:00:01"))
	s.insert(2, 5000, "food", s.at("2024-03-01", "09:00:00"))

	summary, err := s.repo.DaySummary(s.ctx, 1, "2024-03-01")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "2024-03-01", summary.Day)
	assert.Equal(s.T(), int64(4200), summary.Total.Cents)
	assert.ElementsMatch(s.T(), []core.CategoryAmount{
		{Name: "food", Amount: core.Money{Cents: 3500}},
		{Name: "taxi", Amount: core.Money{Cents: 700}},
	}, summary.ByCategory)

	empty, err := s.repo.DaySummary(s.ctx, 1, "2024-02-28")
	require.NoError(s.T(), err)
	assert.True(s.T(), empty.IsEmpty())
	assert.Empty(s.T(), empty.ByCategory)
}

func (s *RepositoryTestSuite) TestTotalSummaryAndMonthlyTotals() {
	s.insert(1, 100, "food", s.at("2024-01-15", "10:00:00"))
	s.insert(1, 200, "rent", s.at("2024-03-01", "10:00:00"))
	s.insert(1, 300, "food", s.at("2023-12-31", "23:59:59"))
	s.insert(1, 400, "food", s.at("2024-03-20", "08:00:00"))
	s.insert(2, 9999, "food", s.at("2024-03-20", "08:00:00"))

	byCategory, total, err := s.repo.TotalSummary(s.ctx, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1000), total.Cents)
	assert.ElementsMatch(s.T(), []core.CategoryAmount{
		{Name: "food", Amount: core.Money{Cents: 800}},
		{Name: "rent", Amount: core.Money{Cents: 200}},
	}, byCategory)

	months, err := s.repo.MonthlyTotals(s.ctx, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []core.MonthTotal{
		{Month: "2024-03", Total: core.Money{Cents: 600}},
		{Month: "2024-01", Total: core.Money{Cents: 100}},
		{Month: "2023-12", Total: core.Money{Cents: 300}},
	}, months)
}

func (s *RepositoryTestSuite) TestDeleteLatestExpense() {
	s.insert(1, 100, "food", s.at("2024-03-01", "10:00:00"))
	s.insert(1, 200, "taxi", s.at("2024-03-01", "11:00:00"))
	s.insert(2, 300, "food", s.at("2024-03-01", "12:00:00"))

	render := func(e core.Expense) string { return "removed " + e.Category }
	deleted, ok, err := s.repo.DeleteLatestExpense(s.ctx, 1, s.at("2024-03-01", "13:00:00"), render)
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), int64(200), deleted.Amount.Cents)
	assert.Equal(s.T(), "taxi", deleted.Category)
	assert.True(s.T(), deleted.CreatedAt.Equal(s.at("2024-03-01", "11:00:00")))

	history, err := s.repo.ActionHistory(s.ctx, 1)
	require.NoError(s.T(), err)
	require.NotEmpty(s.T(), history)
	assert.Equal(s.T(), "removed taxi", history[0].Details)

	_, total, err := s.repo.TotalSummary(s.ctx, 2)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(300), total.Cents, "other users are untouched")
}

func (s *RepositoryTestSuite) TestDeleteLatestExpenseTieBreaksOnHighestID() {
	ts := s.at("2024-03-01", "10:00:00")
	s.insert(1, 100, "first", ts)
	s.insert(1, 200, "second", ts)

	deleted, ok, err := s.repo.DeleteLatestExpense(s.ctx, 1, ts, func(e core.Expense) string { return "x" })
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), "second", deleted.Category)
}

func (s *RepositoryTestSuite) TestDeleteLatestExpenseNothingToDelete() {
	_, ok, err := s.repo.DeleteLatestExpense(s.ctx, 42, time.Now(), func(e core.Expense) string { return "x" })
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)

	history, err := s.repo.ActionHistory(s.ctx, 42)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), history, "an empty undo writes no history")
}

func (s *RepositoryTestSuite) TestActionHistoryIsBoundedPerUser() {
	base := s.at("2024-03-01", "10:00:00")
	for i := 0; i < 10; i++ {
		s.insert(1, int64(i+1)*100, "food", base.Add(time.Duration(i)*time.Minute))
	}
	for i := 0; i < 3; i++ {
		s.insert(2, 100, "food", base.Add(time.Duration(i)*time.Minute))
	}

	history, err := s.repo.ActionHistory(s.ctx, 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), history, core.ActionHistoryLimit)
	for i, entry := range history {
		want := base.Add(time.Duration(9-i) * time.Minute)
		assert.True(s.T(), entry.CreatedAt.Equal(want), "entry %d at %v, want %v", i, entry.CreatedAt, want)
		assert.Equal(s.T(), fmt.Sprintf("added %d to food", (10-i)*100), entry.Details)
	}

	other, err := s.repo.ActionHistory(s.ctx, 2)
	require.NoError(s.T(), err)
	assert.Len(s.T(), other, 3, "pruning one user must not touch another")

	for i := 0; i < 4; i++ {
		_, _, err := s.repo.DeleteLatestExpense(s.ctx, 1, base.Add(time.Hour+time.Duration(i)*time.Minute),
			func(e core.Expense) string { return "removed" })
		require.NoError(s.T(), err)
	}
	history, err = s.repo.ActionHistory(s.ctx, 1)
	require.NoError(s.T(), err)
	assert.Len(s.T(), history, core.ActionHistoryLimit)
}

func (s *RepositoryTestSuite) TestDistinctUsersIgnoresHistoryOnlyUsers() {
	require.NoError(s.T(), s.repo.AppendActionHistory(s.ctx, 7, "looked around", time.Now()))
	s.insert(3, 100, "food", s.at("2024-03-01", "10:00:00"))
	s.insert(1, 100, "food", s.at("2024-03-01", "10:00:00"))
	s.insert(3, 100, "food", s.at("2024-03-02", "10:00:00"))

	users, err := s.repo.DistinctUsers(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []int64{1, 3}, users)
}

func (s *RepositoryTestSuite) TestDigestRunState() {
	day, err := s.repo.LastDigestDay(s.ctx, "daily")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), day)

	require.NoError(s.T(), s.repo.SaveDigestDay(s.ctx, "daily", "2024-03-01", time.Now()))
	require.NoError(s.T(), s.repo.SaveDigestDay(s.ctx, "daily", "2024-03-02", time.Now()))

	day, err = s.repo.LastDigestDay(s.ctx, "daily")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "2024-03-02", day)

	other, err := s.repo.LastDigestDay(s.ctx, "weekly")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), other)
}

func (s *RepositoryTestSuite) TestNegativeAmountIsRejected() {
	_, err := s.repo.InsertExpense(s.ctx, core.Expense{
		UserID:    1,
		Amount:    core.Money{Cents: -1},
		Category:  "food",
		CreatedAt: time.Now(),
	}, "bad")
	require.Error(s.T(), err)
	assert.ErrorIs(s.T(), err, ErrStorage)

	users, err := s.repo.DistinctUsers(s.ctx)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), users)
}

func (s *RepositoryTestSuite) TestErrorsAreStorageErrors() {
	require.NoError(s.T(), s.repo.Close())

	_, err := s.repo.DistinctUsers(s.ctx)
	require.Error(s.T(), err)
	assert.ErrorIs(s.T(), err, ErrStorage)

	var se *Error
	require.True(s.T(), errors.As(err, &se))
	assert.Equal(s.T(), "list users", se.Op)

	s.repo = nil
}

func (s *RepositoryTestSuite) TestLogsCarryStorageComponent() {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(previous)

	s.insert(7, 1500, "food", s.at("2024-03-09", "10:00:00"))
	_, ok, err := s.repo.DeleteLatestExpense(s.ctx, 7, s.at("2024-03-09", "10:01:00"),
		func(e core.Expense) string { return "removed" })
	require.NoError(s.T(), err)
	require.True(s.T(), ok)

	out := buf.String()
	assert.Contains(s.T(), out, "Expense saved to SQLite")
	assert.Contains(s.T(), out, "Expense deleted from SQLite")
	assert.Equal(s.T(), 2, strings.Count(out, "component=storage"))
	assert.Contains(s.T(), out, "user_id=7")
	assert.Contains(s.T(), out, "amount_cents=1500")
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
