package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"orcamento/internal/core"
)

func (q *Queries) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO expenses (date, description, amount_cents, category_id, subcategory_id, person_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Date.String(), e.Description, e.Amount.Cents,
		nullInt(e.CategoryID), nullInt(e.SubcategoryID), nullInt(e.PersonID),
		formatTime(e.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense id: %w", err)
	}
	return id, nil
}

func (q *Queries) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var (
		e                core.Expense
		date, created    string
		cat, sub, person sql.NullInt64
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, date, description, amount_cents, category_id, subcategory_id, person_id, created_at
		FROM expenses WHERE id = ?`, id).
		Scan(&e.ID, &date, &e.Description, &e.Amount.Cents, &cat, &sub, &person, &created)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, translate(err))
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("parse expense date: %w", err)
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return core.Expense{}, fmt.Errorf("parse expense created_at: %w", err)
	}
	e.CategoryID, e.SubcategoryID, e.PersonID = intPtr(cat), intPtr(sub), intPtr(person)
	return e, nil
}

func (q *Queries) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE expenses
		SET date = ?, description = ?, amount_cents = ?, category_id = ?, subcategory_id = ?, person_id = ?
		WHERE id = ?`,
		e.Date.String(), e.Description, e.Amount.Cents,
		nullInt(e.CategoryID), nullInt(e.SubcategoryID), nullInt(e.PersonID), e.ID)
	if err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, translate(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	return nil
}

func (q *Queries) DeleteExpense(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, translate(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

// ListExpenseRows returns the ledger rows dated within period together with
// the names of their category, subcategory and person.
func (q *Queries) ListExpenseRows(ctx context.Context, period core.Period) ([]core.ExpenseRow, error) {
	from := period.Date(1).String()
	to := period.Date(31).String()

	rows, err := q.db.QueryContext(ctx, `
		SELECT e.id, e.date, e.description, e.amount_cents, e.category_id, e.subcategory_id, e.person_id, e.created_at,
		       COALESCE(c.name, ''), COALESCE(c.color, ''), COALESCE(c.tipo, ''),
		       COALESCE(s.name, ''), COALESCE(p.name, '')
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		LEFT JOIN subcategories s ON s.id = e.subcategory_id
		LEFT JOIN people p ON p.id = e.person_id
		WHERE e.date BETWEEN ? AND ?
		ORDER BY e.date DESC, e.id DESC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expenses for %s: %w", period, err)
	}
	defer rows.Close()

	var out []core.ExpenseRow
	for rows.Next() {
		var (
			r                core.ExpenseRow
			date, created    string
			kind             string
			cat, sub, person sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &date, &r.Description, &r.Amount.Cents, &cat, &sub, &person, &created,
			&r.CategoryName, &r.CategoryColor, &kind, &r.SubcategoryName, &r.PersonName); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if r.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse expense date: %w", err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse expense created_at: %w", err)
		}
		r.CategoryID, r.SubcategoryID, r.PersonID = intPtr(cat), intPtr(sub), intPtr(person)
		r.CategoryKind = core.CategoryKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}
