package report

import (
	"fmt"

	"spendlog/internal/core"
)

// Today renders the answer to a "what did I spend today" query.
func Today(s core.DaySummary) string {
	header := "💰 Expenses for " + FormatDay(s.Day) + ":"
	if s.IsEmpty() {
		return header + " no expenses"
	}
	return join(daySection(header, s))
}

// Digest renders the once-daily summary pushed to a user.
func Digest(s core.DaySummary) string {
	return join(daySection("🕒 Your expenses for "+FormatDay(s.Day)+":", s))
}

func daySection(header string, s core.DaySummary) []string {
	lines := make([]string, 0, len(s.ByCategory)+2)
	lines = append(lines, header)
	for _, c := range s.ByCategory {
		lines = append(lines, amountLine(c.Name, c.Amount))
	}
	lines = append(lines, "\nTotal: "+FormatAmount(s.Total)+" "+CurrencyLabel)
	return lines
}

// Stats renders all-time category totals and the monthly breakdown.
func Stats(st core.Stats) string {
	lines := []string{"📊 Your expenses:"}
	if st.IsEmpty() {
		return join(append(lines, "No expenses recorded yet"))
	}
	for _, c := range st.ByCategory {
		lines = append(lines, amountLine(c.Name, c.Amount))
	}
	lines = append(lines, "\n💸 All time: "+FormatAmount(st.Total)+" "+CurrencyLabel)
	lines = append(lines, "\n📅 By month:")
	for _, m := range st.Monthly {
		lines = append(lines, amountLine(m.Month, m.Total))
	}
	return join(lines)
}

// Added confirms a recorded expense.
func Added(e core.Expense) string {
	return fmt.Sprintf("✅ Added: %s %s to category «%s»", FormatAmount(e.Amount), CurrencyLabel, e.Category)
}

// Undone confirms a removed expense.
func Undone(e core.Expense) string {
	return fmt.Sprintf("🗑️ Removed: %s %s (category: %s)", FormatAmount(e.Amount), CurrencyLabel, e.Category)
}

func NothingToUndo() string {
	return "ℹ️ No expenses to remove"
}

// History renders the retained action history, newest first.
func History(entries []core.ActionEntry) string {
	if len(entries) == 0 {
		return "🧾 No recent actions"
	}
	lines := []string{"🧾 Recent actions:"}
	for _, e := range entries {
		lines = append(lines, "- "+e.CreatedAt.Format(displayTimeLayout)+" "+e.Details)
	}
	return join(lines)
}

func Start() string {
	return join([]string{
		"Hi! I am your finance assistant and I will help you keep track of expenses 💰",
		"",
		"Just send an amount and a category, for example: 15000 groceries",
		"",
		"Send /help to see every command.",
	})
}

func Help() string {
	return join([]string{
		"📌 How to use the bot:",
		"",
		"1. Quick entry (no command):",
		"Send: AMOUNT CATEGORY",
		"Example: 15000 groceries",
		"",
		"2. Commands:",
		"/stats - overall spending statistics",
		"/today - today's expenses",
		"/delete_last - remove the last expense",
		"/history - recent actions",
		"/help - this help",
	})
}

// InvalidFormat is the hint shown when an entry has no usable amount.
func InvalidFormat() string {
	return join([]string{
		"❌ Invalid format. Send:",
		"AMOUNT CATEGORY",
		"Example: 10000 food",
	})
}

// Failure is shown when a request could not be completed.
func Failure(action string) string {
	return "❌ Could not " + action + ", please try again later"
}

func TooManyMessages() string {
	return "⏳ Too many messages, please wait a minute"
}
