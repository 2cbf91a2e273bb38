package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"orcamento/internal/core"
)

const plannedColumns = `id, name, amount_cents, category_id, description, due_day, created_at, deactivated_at`

func scanPlanned(row interface{ Scan(...any) error }) (core.PlannedExpense, error) {
	var (
		p           core.PlannedExpense
		cat         sql.NullInt64
		created     string
		deactivated sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Amount.Cents, &cat, &p.Description, &p.DueDay, &created, &deactivated); err != nil {
		return core.PlannedExpense{}, err
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return core.PlannedExpense{}, fmt.Errorf("parse created_at: %w", err)
	}
	if p.DeactivatedAt, err = parseNullTime(deactivated); err != nil {
		return core.PlannedExpense{}, fmt.Errorf("parse deactivated_at: %w", err)
	}
	p.CategoryID = intPtr(cat)
	return p, nil
}

func (q *Queries) CreatePlannedExpense(ctx context.Context, p core.PlannedExpense) (core.PlannedExpense, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO planned_expenses (name, amount_cents, category_id, description, due_day, created_at, deactivated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Amount.Cents, nullInt(p.CategoryID), p.Description, p.DueDay,
		formatTime(p.CreatedAt), nullTime(p.DeactivatedAt))
	if err != nil {
		return core.PlannedExpense{}, fmt.Errorf("create planned expense %q: %w", p.Name, translate(err))
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return core.PlannedExpense{}, fmt.Errorf("planned expense id: %w", err)
	}
	return p, nil
}

func (q *Queries) GetPlannedExpense(ctx context.Context, id int64) (core.PlannedExpense, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+plannedColumns+` FROM planned_expenses WHERE id = ?`, id)
	p, err := scanPlanned(row)
	if err != nil {
		return core.PlannedExpense{}, fmt.Errorf("get planned expense %d: %w", id, translate(err))
	}
	return p, nil
}

// ListPlannedExpenses returns planned expenses ordered by due day and name.
// Deactivated ones are included only when includeInactive is set.
func (q *Queries) ListPlannedExpenses(ctx context.Context, includeInactive bool) ([]core.PlannedExpense, error) {
	query := `SELECT ` + plannedColumns + ` FROM planned_expenses`
	if !includeInactive {
		query += ` WHERE deactivated_at IS NULL`
	}
	query += ` ORDER BY due_day, name, id`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list planned expenses: %w", err)
	}
	defer rows.Close()

	var out []core.PlannedExpense
	for rows.Next() {
		p, err := scanPlanned(rows)
		if err != nil {
			return nil, fmt.Errorf("scan planned expense: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePlannedExpense edits the mutable fields. created_at is never touched.
func (q *Queries) UpdatePlannedExpense(ctx context.Context, p core.PlannedExpense) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE planned_expenses
		SET name = ?, amount_cents = ?, category_id = ?, description = ?, due_day = ?
		WHERE id = ?`,
		p.Name, p.Amount.Cents, nullInt(p.CategoryID), p.Description, p.DueDay, p.ID)
	if err != nil {
		return fmt.Errorf("update planned expense %d: %w", p.ID, translate(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("update planned expense %d: %w", p.ID, err)
	}
	return nil
}

// SetPlannedExpenseDeactivated sets or, with a nil at, clears deactivated_at.
func (q *Queries) SetPlannedExpenseDeactivated(ctx context.Context, id int64, at *time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE planned_expenses SET deactivated_at = ? WHERE id = ?`, nullTime(at), id)
	if err != nil {
		return fmt.Errorf("set deactivated_at on %d: %w", id, translate(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("set deactivated_at on %d: %w", id, err)
	}
	return nil
}
