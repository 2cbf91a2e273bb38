package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/planning"
	"orcamento/internal/storage"
)

// PlannedInput carries the editable fields of a planned expense.
type PlannedInput struct {
	Name        string
	Amount      core.Money
	CategoryID  *int64
	Description string
	DueDay      int
}

// ConfirmRequest confirms the payment of a planned expense for one month.
type ConfirmRequest struct {
	PlannedExpenseID int64
	Period           core.Period
	Amount           core.Money
	PersonID         int64
}

// PlannedService manages recurring obligations and their monthly payments.
type PlannedService struct {
	base
}

func NewPlannedService(repo *storage.SQLiteRepository, publisher events.Publisher) *PlannedService {
	return &PlannedService{base: newBase(repo, publisher)}
}

func (in PlannedInput) apply(p *core.PlannedExpense) {
	p.Name = strings.TrimSpace(in.Name)
	p.Amount = in.Amount
	p.CategoryID = in.CategoryID
	p.Description = strings.TrimSpace(in.Description)
	p.DueDay = in.DueDay
}

// Create registers a planned expense. It shows up from the month it is
// created in onwards, never in earlier months.
func (s *PlannedService) Create(ctx context.Context, in PlannedInput) (core.PlannedExpense, error) {
	var p core.PlannedExpense
	in.apply(&p)
	if err := p.Validate(); err != nil {
		return core.PlannedExpense{}, err
	}
	p.CreatedAt = s.now()

	var changes []events.ChangeEvent
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		created, err := q.CreatePlannedExpense(ctx, p)
		if err != nil {
			return err
		}
		p = created
		act, err := s.logActivity(ctx, q, core.Activity{
			Action:     ActionCreate,
			EntityType: EntityPlannedExpense,
			EntityName: p.Name,
			Details:    fmt.Sprintf("%s todo dia %d", p.Amount, p.DueDay),
		})
		if err != nil {
			return err
		}
		changes = append(changes, events.NewChange(events.TablePlannedExpenses, events.OpInsert, p.ID), act)
		return nil
	})
	if err != nil {
		return core.PlannedExpense{}, fmt.Errorf("create planned expense: %w", err)
	}

	slog.InfoContext(ctx, "Planned expense created",
		"id", p.ID,
		"name", p.Name,
		"amount_cents", p.Amount.Cents,
		"due_day", p.DueDay)
	s.publish(ctx, changes...)
	return p, nil
}

// Update edits a planned expense. Its creation time, and so the first month
// it appears in, is kept.
func (s *PlannedService) Update(ctx context.Context, id int64, in PlannedInput) (core.PlannedExpense, error) {
	var (
		p       core.PlannedExpense
		changes []events.ChangeEvent
	)
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		current, err := q.GetPlannedExpense(ctx, id)
		if err != nil {
			return err
		}
		in.apply(&current)
		if err := current.Validate(); err != nil {
			return err
		}
		if err := q.UpdatePlannedExpense(ctx, current); err != nil {
			return err
		}
		p = current
		act, err := s.logActivity(ctx, q, core.Activity{
			Action:     ActionUpdate,
			EntityType: EntityPlannedExpense,
			EntityName: p.Name,
		})
		if err != nil {
			return err
		}
		changes = append(changes, events.NewChange(events.TablePlannedExpenses, events.OpUpdate, id), act)
		return nil
	})
	if err != nil {
		return core.PlannedExpense{}, fmt.Errorf("update planned expense %d: %w", id, err)
	}
	s.publish(ctx, changes...)
	return p, nil
}

// Deactivate hides the planned expense from the months after the current
// one. The current month keeps listing it with whatever was paid.
func (s *PlannedService) Deactivate(ctx context.Context, id int64) error {
	return s.setActive(ctx, id, false)
}

// Reactivate clears a previous deactivation.
func (s *PlannedService) Reactivate(ctx context.Context, id int64) error {
	return s.setActive(ctx, id, true)
}

func (s *PlannedService) setActive(ctx context.Context, id int64, active bool) error {
	action := ActionDeactivate
	if active {
		action = ActionReactivate
	}

	var changes []events.ChangeEvent
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		p, err := q.GetPlannedExpense(ctx, id)
		if err != nil {
			return err
		}
		if p.Active() == active {
			return nil
		}
		var at = core.Ptr(s.now())
		if active {
			at = nil
		}
		if err := q.SetPlannedExpenseDeactivated(ctx, id, at); err != nil {
			return err
		}
		act, err := s.logActivity(ctx, q, core.Activity{
			Action:     action,
			EntityType: EntityPlannedExpense,
			EntityName: p.Name,
		})
		if err != nil {
			return err
		}
		changes = append(changes, events.NewChange(events.TablePlannedExpenses, events.OpUpdate, id), act)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s planned expense %d: %w", action, id, err)
	}
	s.publish(ctx, changes...)
	return nil
}

// List returns planned expenses, optionally including deactivated ones.
func (s *PlannedService) List(ctx context.Context, includeInactive bool) ([]core.PlannedExpense, error) {
	out, err := s.repo.ListPlannedExpenses(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list planned expenses: %w", err)
	}
	return out, nil
}

// MonthView returns the sorted list of planned expenses for period, with
// their payment state and the month totals, as seen now.
func (s *PlannedService) MonthView(ctx context.Context, period core.Period) (planning.MonthView, error) {
	if err := period.Validate(); err != nil {
		return planning.MonthView{}, err
	}
	planned, err := s.repo.ListPlannedExpenses(ctx, true)
	if err != nil {
		return planning.MonthView{}, fmt.Errorf("month view %s: %w", period, err)
	}
	payments, err := s.repo.ListPaymentsForPeriod(ctx, period)
	if err != nil {
		return planning.MonthView{}, fmt.Errorf("month view %s: %w", period, err)
	}
	return planning.BuildMonthView(planned, payments, period, s.now()), nil
}

// ConfirmPayment records that a planned expense was paid in a month. The
// ledger expense, the payment record linking to it and the activity entry
// are written in one transaction.
func (s *PlannedService) ConfirmPayment(ctx context.Context, req ConfirmRequest) (core.PaymentRecord, error) {
	if err := req.Period.Validate(); err != nil {
		return core.PaymentRecord{}, err
	}
	if err := req.Amount.Validate(); err != nil {
		return core.PaymentRecord{}, err
	}
	if req.PersonID == 0 {
		return core.PaymentRecord{}, core.ErrPayerRequired
	}

	now := s.now()
	var (
		rec     core.PaymentRecord
		planned core.PlannedExpense
		changes []events.ChangeEvent
	)
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		p, err := q.GetPlannedExpense(ctx, req.PlannedExpenseID)
		if err != nil {
			return err
		}
		planned = p
		if !planning.IsVisible(p, req.Period, now.Location()) {
			return ErrNotVisible
		}
		payer, err := q.GetPerson(ctx, req.PersonID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("person %d: %w", req.PersonID, ErrUnknownPayer)
		}
		if err != nil {
			return err
		}

		existing, err := q.GetPayment(ctx, p.ID, req.Period)
		switch {
		case err == nil && existing.Paid:
			return ErrAlreadyPaid
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return err
		}

		expenseID, err := q.CreateExpense(ctx, core.Expense{
			Date:        planning.ExpenseDate(req.Period, p.DueDay),
			Description: p.LedgerDescription(),
			Amount:      req.Amount,
			CategoryID:  p.CategoryID,
			PersonID:    &payer.ID,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}

		rec = core.PaymentRecord{
			PlannedExpenseID: p.ID,
			Period:           req.Period,
			Paid:             true,
			PaidAt:           &now,
			PaidAmount:       &req.Amount,
			PersonID:         &payer.ID,
			ExpenseID:        &expenseID,
		}
		if rec.ID, err = q.UpsertPaid(ctx, rec); err != nil {
			return err
		}

		act, err := s.logActivity(ctx, q, core.Activity{
			Action:     ActionPay,
			EntityType: EntityPlannedExpense,
			EntityName: p.Name,
			Details:    fmt.Sprintf("%s em %s", req.Amount, req.Period),
			PersonID:   &payer.ID,
		})
		if err != nil {
			return err
		}
		changes = append(changes,
			events.NewChange(events.TableExpenses, events.OpInsert, expenseID),
			events.NewChange(events.TablePayments, events.OpUpdate, rec.ID),
			act)
		return nil
	})
	if err != nil {
		return core.PaymentRecord{}, fmt.Errorf("confirm payment %d/%s: %w", req.PlannedExpenseID, req.Period, err)
	}

	slog.InfoContext(ctx, "Planned expense paid",
		"planned_expense_id", planned.ID,
		"name", planned.Name,
		"period", req.Period.String(),
		"amount_cents", req.Amount.Cents,
		"expense_id", *rec.ExpenseID)
	s.publish(ctx, changes...)
	return rec, nil
}

// ReversePayment undoes a confirmed payment: the ledger expense linked to the
// record is deleted and the record is cleared, in one transaction. The record
// row itself is kept. Ledger rows are never matched by description or date.
func (s *PlannedService) ReversePayment(ctx context.Context, plannedID int64, period core.Period) error {
	if err := period.Validate(); err != nil {
		return err
	}

	var changes []events.ChangeEvent
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		p, err := q.GetPlannedExpense(ctx, plannedID)
		if err != nil {
			return err
		}
		rec, err := q.GetPayment(ctx, plannedID, period)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotPaid
		}
		if err != nil {
			return err
		}
		if !rec.Paid {
			return ErrNotPaid
		}

		// The link is the only way to the ledger row. A NULL link means the
		// row was deleted on its own and the foreign key cleared it.
		if rec.ExpenseID == nil {
			slog.WarnContext(ctx, "Ledger expense of payment already gone",
				"planned_expense_id", plannedID,
				"period", period.String())
		} else {
			err := q.DeleteExpense(ctx, *rec.ExpenseID)
			switch {
			case err == nil:
				changes = append(changes, events.NewChange(events.TableExpenses, events.OpDelete, *rec.ExpenseID))
			case errors.Is(err, storage.ErrNotFound):
				slog.WarnContext(ctx, "Ledger expense of payment already gone",
					"planned_expense_id", plannedID,
					"expense_id", *rec.ExpenseID)
			default:
				return err
			}
		}

		if err := q.ClearPaid(ctx, plannedID, period); err != nil {
			return err
		}
		act, err := s.logActivity(ctx, q, core.Activity{
			Action:     ActionUnpay,
			EntityType: EntityPlannedExpense,
			EntityName: p.Name,
			Details:    period.String(),
		})
		if err != nil {
			return err
		}
		changes = append(changes, events.NewChange(events.TablePayments, events.OpUpdate, rec.ID), act)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reverse payment %d/%s: %w", plannedID, period, err)
	}

	slog.InfoContext(ctx, "Planned expense payment reversed",
		"planned_expense_id", plannedID,
		"period", period.String())
	s.publish(ctx, changes...)
	return nil
}
