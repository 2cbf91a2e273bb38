// Package services orchestrates storage transactions, the activity log and
// change notifications for every mutation the application performs.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/storage"
)

var (
	ErrAlreadyPaid      = errors.New("planned expense already paid for this month")
	ErrNotPaid          = errors.New("planned expense is not paid for this month")
	ErrNotVisible       = errors.New("planned expense does not exist in this month")
	ErrUnknownPayer     = errors.New("payer does not exist")
	ErrImportInProgress = errors.New("an import is already running")
)

// Activity actions.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionPay        = "pay"
	ActionUnpay      = "unpay"
	ActionDeactivate = "deactivate"
	ActionReactivate = "reactivate"
	ActionImport     = "import"
)

// Activity entity types.
const (
	EntityExpense        = "expense"
	EntityPlannedExpense = "planned_expense"
	EntityCategory       = "category"
	EntitySubcategory    = "subcategory"
	EntityPerson         = "person"
)

// base is shared by every service: the repository, where committed changes
// are announced, and the clock.
type base struct {
	repo      *storage.SQLiteRepository
	publisher events.Publisher
	now       func() time.Time
}

func newBase(repo *storage.SQLiteRepository, publisher events.Publisher) base {
	return base{repo: repo, publisher: publisher, now: time.Now}
}

// logActivity appends an activity inside the current transaction and returns
// the change to announce after commit.
func (b base) logActivity(ctx context.Context, q *storage.Queries, a core.Activity) (events.ChangeEvent, error) {
	a.CreatedAt = b.now()
	id, err := q.InsertActivity(ctx, a)
	if err != nil {
		return events.ChangeEvent{}, fmt.Errorf("log activity: %w", err)
	}
	return events.NewChange(events.TableActivities, events.OpInsert, id), nil
}

func (b base) publish(ctx context.Context, changes ...events.ChangeEvent) {
	events.PublishAll(ctx, b.publisher, changes...)
}

// ActivityService reads the audit log.
type ActivityService struct {
	base
}

func NewActivityService(repo *storage.SQLiteRepository) *ActivityService {
	return &ActivityService{base: newBase(repo, nil)}
}

// Recent returns the latest activities, newest first.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]core.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out, err := s.repo.ListActivities(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	return out, nil
}
