package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/planning"
	"orcamento/internal/storage"
)

type plannedFixture struct {
	repo  *storage.SQLiteRepository
	pub   *recordingPublisher
	svc   *PlannedService
	now   time.Time
	payer core.Person
}

func newPlannedFixture(t *testing.T) *plannedFixture {
	t.Helper()
	f := &plannedFixture{
		repo: newTestRepo(t),
		pub:  &recordingPublisher{},
		now:  time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewPlannedService(f.repo, f.pub)
	f.svc.now = fixedClock(&f.now)
	f.payer = mustPerson(t, f.repo, "Ana")
	return f
}

func (f *plannedFixture) create(t *testing.T, name string, cents int64, dueDay int) core.PlannedExpense {
	t.Helper()
	p, err := f.svc.Create(context.Background(), PlannedInput{
		Name:   name,
		Amount: core.Money{Cents: cents},
		DueDay: dueDay,
	})
	if err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	return p
}

var march = core.Period{Year: 2025, Month: time.March}

func TestPlannedCreateValidation(t *testing.T) {
	f := newPlannedFixture(t)

	tests := []struct {
		name string
		in   PlannedInput
		want error
	}{
		{"empty name", PlannedInput{Name: " ", Amount: core.Money{Cents: 100}, DueDay: 1}, core.ErrEmptyName},
		{"zero amount", PlannedInput{Name: "Luz", DueDay: 1}, core.ErrInvalidAmount},
		{"due day 0", PlannedInput{Name: "Luz", Amount: core.Money{Cents: 100}, DueDay: 0}, core.ErrInvalidDueDay},
		{"due day 32", PlannedInput{Name: "Luz", Amount: core.Money{Cents: 100}, DueDay: 32}, core.ErrInvalidDueDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfirmPaymentCreatesLinkedExpense(t *testing.T) {
	f := newPlannedFixture(t)
	ctx := context.Background()
	netflix := f.create(t, "Netflix", 3990, 5)
	f.pub.reset()

	rec, err := f.svc.ConfirmPayment(ctx, ConfirmRequest{
		PlannedExpenseID: netflix.ID,
		Period:           march,
		Amount:           core.Money{Cents: 3500},
		PersonID:         f.payer.ID,
	})
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if !rec.Paid || rec.ExpenseID == nil {
		t.Fatalf("record = %+v, want paid with expense link", rec)
	}

	e, err := f.repo.GetExpense(ctx, *rec.ExpenseID)
	if err != nil {
		t.Fatalf("GetExpense() error = %v", err)
	}
	if e.Description != "Netflix" || e.Amount.Cents != 3500 || e.Date.String() != "2025-03-05" {
		t.Errorf("ledger expense = %+v", e)
	}
	if e.PersonID == nil || *e.PersonID != f.payer.ID {
		t.Errorf("ledger payer = %v, want %d", e.PersonID, f.payer.ID)
	}

	view, err := f.svc.MonthView(ctx, march)
	if err != nil {
		t.Fatalf("MonthView() error = %v", err)
	}
	if len(view.Items) != 1 || !view.Items[0].AmountDiffers() {
		t.Fatalf("items = %+v", view.Items)
	}
	if view.Stats.Paid.Cents != 3500 || view.Stats.Pending.Cents != 0 || view.Stats.PaidCount != 1 {
		t.Errorf("stats = %+v", view.Stats)
	}

	got := f.pub.tables()
	for _, table := range []string{events.TableExpenses, events.TablePayments, events.TableActivities} {
		if got[table] != 1 {
			t.Errorf("published %d %s events, want 1", got[table], table)
		}
	}

	_, err = f.svc.ConfirmPayment(ctx, ConfirmRequest{
		PlannedExpenseID: netflix.ID,
		Period:           march,
		Amount:           core.Money{Cents: 3990},
		PersonID:         f.payer.ID,
	})
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("second ConfirmPayment() error = %v, want ErrAlreadyPaid", err)
	}
	rows, err := f.repo.ListExpenseRows(ctx, march)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("ledger has %d rows after double confirm, want 1", len(rows))
	}
}

func TestConfirmPaymentClampsDueDay(t *testing.T) {
	f := newPlannedFixture(t)
	f.now = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	rent := f.create(t, "Aluguel", 150000, 31)

	feb := core.Period{Year: 2025, Month: time.February}
	rec, err := f.svc.ConfirmPayment(context.Background(), ConfirmRequest{
		PlannedExpenseID: rent.ID,
		Period:           feb,
		Amount:           rent.Amount,
		PersonID:         f.payer.ID,
	})
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	e, err := f.repo.GetExpense(context.Background(), *rec.ExpenseID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Date.String() != "2025-02-28" {
		t.Errorf("expense date = %s, want 2025-02-28", e.Date)
	}
}

func TestConfirmPaymentRejections(t *testing.T) {
	f := newPlannedFixture(t)
	ctx := context.Background()
	luz := f.create(t, "Luz", 12000, 15)
	f.pub.reset()

	tests := []struct {
		name string
		req  ConfirmRequest
		want error
	}{
		{
			name: "zero amount",
			req:  ConfirmRequest{PlannedExpenseID: luz.ID, Period: march, PersonID: f.payer.ID},
			want: core.ErrInvalidAmount,
		},
		{
			name: "missing payer",
			req:  ConfirmRequest{PlannedExpenseID: luz.ID, Period: march, Amount: luz.Amount},
			want: core.ErrPayerRequired,
		},
		{
			name: "unknown payer",
			req:  ConfirmRequest{PlannedExpenseID: luz.ID, Period: march, Amount: luz.Amount, PersonID: 4242},
			want: ErrUnknownPayer,
		},
		{
			name: "before creation month",
			req:  ConfirmRequest{PlannedExpenseID: luz.ID, Period: core.Period{Year: 2025, Month: time.February}, Amount: luz.Amount, PersonID: f.payer.ID},
			want: ErrNotVisible,
		},
		{
			name: "unknown planned expense",
			req:  ConfirmRequest{PlannedExpenseID: 9999, Period: march, Amount: luz.Amount, PersonID: f.payer.ID},
			want: storage.ErrNotFound,
		},
		{
			name: "invalid month",
			req:  ConfirmRequest{PlannedExpenseID: luz.ID, Period: core.Period{Year: 2025, Month: 13}, Amount: luz.Amount, PersonID: f.payer.ID},
			want: core.ErrInvalidMonth,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.ConfirmPayment(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("ConfirmPayment() error = %v, want %v", err, tt.want)
			}
		})
	}

	payments, err := f.repo.ListPaymentsForPeriod(ctx, march)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := f.repo.ListExpenseRows(ctx, march)
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != 0 || len(rows) != 0 {
		t.Errorf("rejected confirmations wrote %d payments and %d expenses", len(payments), len(rows))
	}
	if n := len(f.pub.tables()); n != 0 {
		t.Errorf("rejected confirmations published events for %d tables", n)
	}
}

func TestReversePaymentAfterDueDayEdit(t *testing.T) {
	f := newPlannedFixture(t)
	ctx := context.Background()
	net := f.create(t, "Internet", 9990, 5)

	rec, err := f.svc.ConfirmPayment(ctx, ConfirmRequest{
		PlannedExpenseID: net.ID,
		Period:           march,
		Amount:           net.Amount,
		PersonID:         f.payer.ID,
	})
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	// the ledger row keeps the old date; reversal must still find it
	if _, err := f.svc.Update(ctx, net.ID, PlannedInput{Name: "Internet", Amount: net.Amount, DueDay: 20}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if err := f.svc.ReversePayment(ctx, net.ID, march); err != nil {
		t.Fatalf("ReversePayment() error = %v", err)
	}
	if _, err := f.repo.GetExpense(ctx, *rec.ExpenseID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ledger expense still present: %v", err)
	}

	kept, err := f.repo.GetPayment(ctx, net.ID, march)
	if err != nil {
		t.Fatalf("payment row removed: %v", err)
	}
	if kept.Paid || kept.PaidAt != nil || kept.PaidAmount != nil || kept.PersonID != nil || kept.ExpenseID != nil {
		t.Errorf("payment not cleared: %+v", kept)
	}

	view, err := f.svc.MonthView(ctx, march)
	if err != nil {
		t.Fatal(err)
	}
	if view.Stats.Paid.Cents != 0 || view.Stats.Pending.Cents != 9990 || view.Stats.Expected != view.Stats.Planned {
		t.Errorf("stats after reversal = %+v", view.Stats)
	}

	if err := f.svc.ReversePayment(ctx, net.ID, march); !errors.Is(err, ErrNotPaid) {
		t.Errorf("second ReversePayment() error = %v, want ErrNotPaid", err)
	}
	april := march.Next()
	if err := f.svc.ReversePayment(ctx, net.ID, april); !errors.Is(err, ErrNotPaid) {
		t.Errorf("ReversePayment() of untouched month error = %v, want ErrNotPaid", err)
	}
}

func TestReversePaymentKeepsLookalikeExpense(t *testing.T) {
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
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	// the linked row is deleted from the ledger directly
	expenses := NewExpenseService(f.repo, f.pub)
	if err := expenses.Delete(ctx, *rec.ExpenseID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	unlinked, err := f.repo.GetPayment(ctx, water.ID, march)
	if err != nil {
		t.Fatal(err)
	}
	if !unlinked.Paid || unlinked.ExpenseID != nil {
		t.Fatalf("payment after ledger delete = %+v, want paid without link", unlinked)
	}

	manual, err := expenses.Create(ctx, core.Expense{
		Date:        planning.ExpenseDate(march, water.DueDay),
		Description: water.LedgerDescription(),
		Amount:      water.Amount,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := f.svc.ReversePayment(ctx, water.ID, march); err != nil {
		t.Fatalf("ReversePayment() error = %v", err)
	}
	if _, err := f.repo.GetExpense(ctx, manual.ID); err != nil {
		t.Errorf("manual expense removed by reversal: %v", err)
	}
	kept, err := f.repo.GetPayment(ctx, water.ID, march)
	if err != nil {
		t.Fatal(err)
	}
	if kept.Paid {
		t.Errorf("payment still paid after reversal: %+v", kept)
	}
}

func TestDeactivateAndReactivate(t *testing.T) {
	f := newPlannedFixture(t)
	ctx := context.Background()
	f.now = time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	tv := f.create(t, "TV a cabo", 15000, 12)

	f.now = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	if err := f.svc.Deactivate(ctx, tv.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	visible := func(p core.Period) bool {
		t.Helper()
		view, err := f.svc.MonthView(ctx, p)
		if err != nil {
			t.Fatalf("MonthView(%s) error = %v", p, err)
		}
		return len(view.Items) == 1
	}
	feb := core.Period{Year: 2025, Month: time.February}
	if !visible(feb) {
		t.Error("deactivation hid an earlier month")
	}
	if !visible(march) {
		t.Error("deactivation hid the current month")
	}
	if visible(march.Next()) {
		t.Error("deactivated expense still visible next month")
	}

	active, err := f.svc.List(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("List(false) = %d items, want 0", len(active))
	}

	if err := f.svc.Reactivate(ctx, tv.ID); err != nil {
		t.Fatalf("Reactivate() error = %v", err)
	}
	if !visible(march.Next()) {
		t.Error("reactivated expense not visible")
	}
	if err := f.svc.Reactivate(ctx, tv.ID); err != nil {
		t.Errorf("Reactivate() of active expense error = %v", err)
	}
}

func TestUpdateKeepsCreationMonth(t *testing.T) {
	f := newPlannedFixture(t)
	ctx := context.Background()
	p := f.create(t, "Seguro", 20000, 3)

	f.now = f.now.AddDate(0, 2, 0)
	updated, err := f.svc.Update(ctx, p.ID, PlannedInput{Name: "Seguro auto", Amount: core.Money{Cents: 21000}, DueDay: 4})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("CreatedAt changed from %v to %v", p.CreatedAt, updated.CreatedAt)
	}
	if _, err := f.svc.Update(ctx, 9999, PlannedInput{Name: "x", Amount: core.Money{Cents: 1}, DueDay: 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update() of missing id error = %v, want ErrNotFound", err)
	}
}
