// Package report renders ledger results as chat text.
//
// Amounts are grouped in thousands with a period and shown without decimals
// ("15000.5" becomes "15.000", halves round to even); dates are shown as DD.MM.YYYY.
package report

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"spendlog/internal/core"
)

const (
	// CurrencyLabel follows every rendered amount.
	CurrencyLabel = "sum"

	displayDayLayout  = "02.01.2006"
	displayTimeLayout = "02.01.2006 15:04"

	amountFormat = "#.###,"
)

// FormatAmount renders m thousands-grouped with "." and zero decimal places,
// rounding halves to even.
func FormatAmount(m core.Money) string {
	whole := m.Decimal().RoundBank(0)
	return humanize.FormatFloat(amountFormat, whole.InexactFloat64())
}

// FormatDay turns a YYYY-MM-DD key into DD.MM.YYYY.
func FormatDay(day string) string {
	t, err := time.Parse(core.DayLayout, day)
	if err != nil {
		return day
	}
	return t.Format(displayDayLayout)
}

func amountLine(label string, m core.Money) string {
	return "- " + label + ": " + FormatAmount(m) + " " + CurrencyLabel
}

func join(lines []string) string {
	return strings.Join(lines, "\n")
}
