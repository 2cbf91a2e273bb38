package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"orcamento/internal/core"
)

const paymentColumns = `id, planned_expense_id, month, year, paid, paid_at, paid_amount_cents, person_id, expense_id`

func scanPayment(row interface{ Scan(...any) error }) (core.PaymentRecord, error) {
	var (
		r                 core.PaymentRecord
		month             int
		paidAt            sql.NullString
		amount            sql.NullInt64
		person, expenseID sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.PlannedExpenseID, &month, &r.Period.Year, &r.Paid, &paidAt, &amount, &person, &expenseID); err != nil {
		return core.PaymentRecord{}, err
	}
	r.Period.Month = time.Month(month)
	var err error
	if r.PaidAt, err = parseNullTime(paidAt); err != nil {
		return core.PaymentRecord{}, fmt.Errorf("parse paid_at: %w", err)
	}
	if amount.Valid {
		r.PaidAmount = &core.Money{Cents: amount.Int64}
	}
	r.PersonID, r.ExpenseID = intPtr(person), intPtr(expenseID)
	return r, nil
}

// GetPayment returns the record for a planned expense in period, or ErrNotFound.
func (q *Queries) GetPayment(ctx context.Context, plannedID int64, period core.Period) (core.PaymentRecord, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM planned_expense_payments
		WHERE planned_expense_id = ? AND month = ? AND year = ?`,
		plannedID, int(period.Month), period.Year)
	r, err := scanPayment(row)
	if err != nil {
		return core.PaymentRecord{}, fmt.Errorf("get payment %d/%s: %w", plannedID, period, translate(err))
	}
	return r, nil
}

func (q *Queries) ListPaymentsForPeriod(ctx context.Context, period core.Period) ([]core.PaymentRecord, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM planned_expense_payments WHERE month = ? AND year = ?`,
		int(period.Month), period.Year)
	if err != nil {
		return nil, fmt.Errorf("list payments for %s: %w", period, err)
	}
	defer rows.Close()

	var out []core.PaymentRecord
	for rows.Next() {
		r, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertPaid marks the (planned expense, period) pair paid, creating the
// record if it does not exist yet.
func (q *Queries) UpsertPaid(ctx context.Context, r core.PaymentRecord) (int64, error) {
	var amount sql.NullInt64
	if r.PaidAmount != nil {
		amount = sql.NullInt64{Int64: r.PaidAmount.Cents, Valid: true}
	}
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO planned_expense_payments
			(planned_expense_id, month, year, paid, paid_at, paid_amount_cents, person_id, expense_id)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT (planned_expense_id, month, year) DO UPDATE SET
			paid = 1,
			paid_at = excluded.paid_at,
			paid_amount_cents = excluded.paid_amount_cents,
			person_id = excluded.person_id,
			expense_id = excluded.expense_id
		RETURNING id`,
		r.PlannedExpenseID, int(r.Period.Month), r.Period.Year,
		nullTime(r.PaidAt), amount, nullInt(r.PersonID), nullInt(r.ExpenseID)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert payment %d/%s: %w", r.PlannedExpenseID, r.Period, translate(err))
	}
	return id, nil
}

// ClearPaid unmarks the record but keeps the row.
func (q *Queries) ClearPaid(ctx context.Context, plannedID int64, period core.Period) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE planned_expense_payments
		SET paid = 0, paid_at = NULL, paid_amount_cents = NULL, person_id = NULL, expense_id = NULL
		WHERE planned_expense_id = ? AND month = ? AND year = ?`,
		plannedID, int(period.Month), period.Year)
	if err != nil {
		return fmt.Errorf("clear payment %d/%s: %w", plannedID, period, translate(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("clear payment %d/%s: %w", plannedID, period, err)
	}
	return nil
}
