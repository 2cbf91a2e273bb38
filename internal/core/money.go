// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and numbers and formatting cents as Brazilian reais.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brlPrinter = message.NewPrinter(language.BrazilianPortuguese)

// ParseMoney reads a positive amount typed by a person or exported by a
// spreadsheet: "R$ 1.234,56", "1234.56", "39,90" and "1,234.56". When only
// dots appear and the last group has exactly three digits the dots are
// thousands separators ("1.234" is 1234). Extra decimals round half-up.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromFloat converts a reais value that arrived as a number, such as a
// JSON amount. There are no separators to guess: 0.125 is twelve and a half
// cents, rounded to 13.
func MoneyFromFloat(v float64) (Money, error) {
	return MoneyFromDecimal(decimal.NewFromFloat(v))
}

// MoneyFromDecimal rounds reais to cents, half-up on the third decimal, and
// rejects amounts that are not positive.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	if !cents.IsInteger() || cents.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Reais returns the value as a float64 for display purposes only.
// Use cents for calculations.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount in pt-BR notation, e.g. "R$ 1.234,56".
func (m Money) String() string {
	return brlPrinter.Sprintf("R$ %.2f", m.Reais())
}

// Decimal formats the amount as a plain dot-separated decimal ("39.90").
func (m Money) Decimal() string {
	sign := ""
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + twoDigits(cents%100)
}

func twoDigits(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}
