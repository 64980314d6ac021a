// Package core provides money parsing and handling utilities.
//
// This file contains the parser for user-typed amounts and the conversions
// between integer cents and decimal representations.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount keeps cents well inside int64.
var maxAmount = decimal.New(1, 15)

// AmountError reports the raw text that could not be used as an amount.
type AmountError struct {
	Input string
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("invalid amount %q", e.Input)
}

func (e *AmountError) Unwrap() error {
	return ErrInvalidAmount
}

// ParseAmount converts user input to Money.
//
// Both dot (12.34) and comma (12,34) are accepted as decimal separator and the
// value is rounded half-up to two decimal places. Unparseable, negative and
// zero amounts fail with an *AmountError wrapping ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("15000")    -> 1500000 cents
//	ParseAmount("15000,50") -> 1500050 cents
//	ParseAmount("0.005")    -> 1 cent
//	ParseAmount("-3")       -> error
func ParseAmount(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Money{}, &AmountError{Input: raw}
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "-") {
		return Money{}, &AmountError{Input: raw}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &AmountError{Input: raw}
	}
	d = d.Round(2)
	if d.Sign() <= 0 || d.GreaterThanOrEqual(maxAmount) {
		return Money{}, &AmountError{Input: raw}
	}

	return Money{Cents: d.Shift(2).IntPart()}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// String renders the plain decimal value, e.g. "15000.5".
func (m Money) String() string {
	return m.Decimal().String()
}
