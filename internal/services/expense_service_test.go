package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/storage"
)

func TestExpenseServiceLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	pub := &recordingPublisher{}
	svc := NewExpenseService(repo, pub)
	ctx := context.Background()

	e, err := svc.Create(ctx, core.Expense{
		Date:        core.NewDate(2025, 3, 2),
		Description: "  Padaria ",
		Amount:      core.Money{Cents: 1850},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ID == 0 || e.Description != "Padaria" {
		t.Fatalf("created = %+v", e)
	}

	e.Amount = core.Money{Cents: 2100}
	updated, err := svc.Update(ctx, e)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Amount.Cents != 2100 {
		t.Errorf("updated amount = %d", updated.Amount.Cents)
	}

	rows, err := svc.List(ctx, core.Period{Year: 2025, Month: time.March})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != e.ID {
		t.Fatalf("rows = %+v", rows)
	}

	if err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, e.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	got := pub.tables()
	if got[events.TableExpenses] != 3 || got[events.TableActivities] != 3 {
		t.Errorf("published = %v", got)
	}
}

func TestExpenseServiceValidation(t *testing.T) {
	svc := NewExpenseService(newTestRepo(t), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		e    core.Expense
		want error
	}{
		{"blank description", core.Expense{Date: core.NewDate(2025, 1, 1), Description: "  ", Amount: core.Money{Cents: 1}}, core.ErrEmptyDescription},
		{"zero amount", core.Expense{Date: core.NewDate(2025, 1, 1), Description: "x"}, core.ErrInvalidAmount},
		{"unknown person", core.Expense{Date: core.NewDate(2025, 1, 1), Description: "x", Amount: core.Money{Cents: 1}, PersonID: core.Ptr(int64(77))}, storage.ErrInvalidReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.e); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := svc.List(ctx, core.Period{Year: 2025}); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("List() error = %v, want ErrInvalidMonth", err)
	}
}

func TestDeletingLinkedExpenseKeepsPayment(t *testing.T) {
	f := newPlannedFixture(t)
	ctx := context.Background()
	water := f.create(t, "Água", 7000, 9)

	rec, err := f.svc.ConfirmPayment(ctx, ConfirmRequest{
		PlannedExpenseID: water.ID,
		Period:           march,
		Amount:           water.Amount,
		PersonID:         f.payer.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	expenses := NewExpenseService(f.repo, nil)
	if err := expenses.Delete(ctx, *rec.ExpenseID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	kept, err := f.repo.GetPayment(ctx, water.ID, march)
	if err != nil {
		t.Fatal(err)
	}
	if !kept.Paid || kept.ExpenseID != nil {
		t.Errorf("payment = %+v, want paid without link", kept)
	}

	// reversal tolerates the missing ledger row
	if err := f.svc.ReversePayment(ctx, water.ID, march); err != nil {
		t.Errorf("ReversePayment() error = %v", err)
	}
}
