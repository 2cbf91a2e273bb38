// Package importer turns spreadsheet rows into ledger expenses.
package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"orcamento/internal/core"
)

// Column is a field recognized in the header row.
type Column int

const (
	ColDate Column = iota
	ColDescription
	ColAmount
	ColCategory
	ColSubcategory
	ColPerson
)

var headerAliases = map[string]Column{
	"data":         ColDate,
	"date":         ColDate,
	"descricao":    ColDescription,
	"description":  ColDescription,
	"valor":        ColAmount,
	"amount":       ColAmount,
	"categoria":    ColCategory,
	"category":     ColCategory,
	"subcategoria": ColSubcategory,
	"subcategory":  ColSubcategory,
	"pessoa":       ColPerson,
	"person":       ColPerson,
}

var (
	ErrNoRows        = errors.New("spreadsheet has no rows")
	ErrMissingColumn = errors.New("required column missing")
	ErrInvalidDate   = errors.New("invalid date")
)

// Header maps recognized columns to their index in a row.
type Header map[Column]int

// ParseHeader reads the header row. Date, description and amount are required.
func ParseHeader(row []string) (Header, error) {
	h := make(Header)
	for i, cell := range row {
		if col, ok := headerAliases[Normalize(cell)]; ok {
			if _, dup := h[col]; !dup {
				h[col] = i
			}
		}
	}
	for col, name := range map[Column]string{ColDate: "data", ColDescription: "descricao", ColAmount: "valor"} {
		if _, ok := h[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return h, nil
}

func (h Header) cell(row []string, col Column) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Record is one parsed spreadsheet row. Row is 1-based and counts the header.
type Record struct {
	Row         int
	Date        core.Date
	Description string
	Amount      core.Money
	Category    string
	Subcategory string
	Person      string
}

// Skip explains why a row was not imported.
type Skip struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ParseRows parses a sheet whose first row is the header. Blank rows are
// ignored; malformed rows are reported as skips.
func ParseRows(rows [][]string) ([]Record, []Skip, error) {
	if len(rows) == 0 {
		return nil, nil, ErrNoRows
	}
	h, err := ParseHeader(rows[0])
	if err != nil {
		return nil, nil, err
	}

	var (
		records []Record
		skips   []Skip
	)
	for i, row := range rows[1:] {
		n := i + 2
		if blank(row) {
			continue
		}
		rec, err := parseRecord(h, row)
		if err != nil {
			skips = append(skips, Skip{Row: n, Reason: err.Error()})
			continue
		}
		rec.Row = n
		records = append(records, rec)
	}
	return records, skips, nil
}

func parseRecord(h Header, row []string) (Record, error) {
	date, err := ParseDate(h.cell(row, ColDate))
	if err != nil {
		return Record{}, err
	}
	amount, err := core.ParseMoney(h.cell(row, ColAmount))
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Date:        date,
		Description: h.cell(row, ColDescription),
		Amount:      amount,
		Category:    h.cell(row, ColCategory),
		Subcategory: h.cell(row, ColSubcategory),
		Person:      h.cell(row, ColPerson),
	}
	e := core.Expense{Date: rec.Date, Description: rec.Description, Amount: rec.Amount}
	if err := e.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{time.DateOnly, "02/01/2006", "2/1/2006", "02/01/06"}

// ParseDate accepts YYYY-MM-DD and DD/MM/YYYY.
func ParseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.Date{Time: t}, nil
		}
	}
	return core.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Normalize lower-cases s and strips accents so "Descrição" matches "descricao".
func Normalize(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(fold, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return strings.ToLower(out)
}
