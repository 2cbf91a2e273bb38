package storage

import (
	"context"
	"database/sql"
	"fmt"

	"orcamento/internal/core"
)

// CategoryTotal is a ledger sum for one category; uncategorized rows have a nil ID.
type CategoryTotal struct {
	core.GroupTotal
	Kind core.CategoryKind
}

func periodBounds(p core.Period) (string, string) {
	return p.Date(1).String(), p.Date(31).String()
}

// MonthTotal sums the ledger for period.
func (q *Queries) MonthTotal(ctx context.Context, period core.Period) (core.Money, int, error) {
	from, to := periodBounds(period)
	var (
		total int64
		count int
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0), COUNT(*) FROM expenses WHERE date BETWEEN ? AND ?`,
		from, to).Scan(&total, &count)
	if err != nil {
		return core.Money{}, 0, fmt.Errorf("month total %s: %w", period, err)
	}
	return core.Money{Cents: total}, count, nil
}

// CategoryTotals groups the ledger of period by category, largest first.
func (q *Queries) CategoryTotals(ctx context.Context, period core.Period) ([]CategoryTotal, error) {
	from, to := periodBounds(period)
	rows, err := q.db.QueryContext(ctx, `
		SELECT c.id, COALESCE(c.name, ''), COALESCE(c.color, ''), COALESCE(c.tipo, 'variavel'),
		       SUM(e.amount_cents), COUNT(*)
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.date BETWEEN ? AND ?
		GROUP BY c.id
		ORDER BY SUM(e.amount_cents) DESC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("category totals %s: %w", period, err)
	}
	defer rows.Close()

	var out []CategoryTotal
	for rows.Next() {
		var (
			t    CategoryTotal
			id   sql.NullInt64
			kind string
		)
		if err := rows.Scan(&id, &t.Name, &t.Color, &kind, &t.Amount.Cents, &t.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		t.ID = intPtr(id)
		t.Kind = core.CategoryKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

// PersonTotals groups the ledger of period by payer, largest first.
func (q *Queries) PersonTotals(ctx context.Context, period core.Period) ([]core.GroupTotal, error) {
	from, to := periodBounds(period)
	rows, err := q.db.QueryContext(ctx, `
		SELECT p.id, COALESCE(p.name, ''), COALESCE(p.color, ''), SUM(e.amount_cents), COUNT(*)
		FROM expenses e
		LEFT JOIN people p ON p.id = e.person_id
		WHERE e.date BETWEEN ? AND ?
		GROUP BY p.id
		ORDER BY SUM(e.amount_cents) DESC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("person totals %s: %w", period, err)
	}
	defer rows.Close()

	var out []core.GroupTotal
	for rows.Next() {
		var (
			t  core.GroupTotal
			id sql.NullInt64
		)
		if err := rows.Scan(&id, &t.Name, &t.Color, &t.Amount.Cents, &t.Count); err != nil {
			return nil, fmt.Errorf("scan person total: %w", err)
		}
		t.ID = intPtr(id)
		out = append(out, t)
	}
	return out, rows.Err()
}
