package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/storage"
)

// ExpenseService manages the general ledger.
type ExpenseService struct {
	base
}

func NewExpenseService(repo *storage.SQLiteRepository, publisher events.Publisher) *ExpenseService {
	return &ExpenseService{base: newBase(repo, publisher)}
}

// Create validates and stores a ledger expense.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = s.now()

	var changes []events.ChangeEvent
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		id, err := q.CreateExpense(ctx, e)
		if err != nil {
			return err
		}
		e.ID = id
		act, err := s.logActivity(ctx, q, core.Activity{
			Action:     ActionCreate,
			EntityType: EntityExpense,
			EntityName: e.Description,
			Details:    e.Amount.String(),
			PersonID:   e.PersonID,
		})
		if err != nil {
			return err
		}
		changes = append(changes, events.NewChange(events.TableExpenses, events.OpInsert, id), act)
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())
	s.publish(ctx, changes...)
	return e, nil
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// Update replaces the editable fields of an expense.
func (s *ExpenseService) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	var changes []events.ChangeEvent
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		if err := q.UpdateExpense(ctx, e); err != nil {
			return err
		}
		act, err := s.logActivity(ctx, q, core.Activity{
			Action:     ActionUpdate,
			EntityType: EntityExpense,
			EntityName: e.Description,
			Details:    e.Amount.String(),
		})
		if err != nil {
			return err
		}
		changes = append(changes, events.NewChange(events.TableExpenses, events.OpUpdate, e.ID), act)
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.publish(ctx, changes...)
	return s.Get(ctx, e.ID)
}

// Delete removes an expense. A payment record pointing at it keeps its paid
// state; only its link is cleared by the foreign key.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	var changes []events.ChangeEvent
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		e, err := q.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if err := q.DeleteExpense(ctx, id); err != nil {
			return err
		}
		act, err := s.logActivity(ctx, q, core.Activity{
			Action:     ActionDelete,
			EntityType: EntityExpense,
			EntityName: e.Description,
			Details:    e.Amount.String(),
		})
		if err != nil {
			return err
		}
		changes = append(changes, events.NewChange(events.TableExpenses, events.OpDelete, id), act)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.publish(ctx, changes...)
	return nil
}

// List returns the ledger of period with category, subcategory and person names.
func (s *ExpenseService) List(ctx context.Context, period core.Period) ([]core.ExpenseRow, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListExpenseRows(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return rows, nil
}
