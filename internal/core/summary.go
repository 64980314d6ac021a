package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthTotal is the spending of one YYYY-MM month.
type MonthTotal struct {
	Month string
	Total Money
}

// DaySummary is the spending of one calendar day.
// ByCategory keeps storage grouping order.
type DaySummary struct {
	Day        string
	Total      Money
	ByCategory []CategoryAmount
}

// Stats is the all-time picture for a user.
type Stats struct {
	ByCategory []CategoryAmount
	Total      Money
	Monthly    []MonthTotal // newest month first
}

func (s DaySummary) IsEmpty() bool {
	return s.Total.Cents <= 0
}

func (s Stats) IsEmpty() bool {
	return len(s.ByCategory) == 0
}
