// Package planning tracks monthly payments of planned (recurring) expenses.
//
// Everything here is a pure function of fetched data: which planned expenses
// are visible in a month, which are overdue, how the monthly list is sorted
// and the aggregate totals shown above it.
package planning

import (
	"sort"
	"time"

	"orcamento/internal/core"
)

// Status is the payment state of a planned expense within one month.
type Status int

const (
	StatusOverdue Status = iota
	StatusPending
	StatusPaid
)

func (s Status) String() string {
	switch s {
	case StatusOverdue:
		return "overdue"
	case StatusPending:
		return "pending"
	case StatusPaid:
		return "paid"
	default:
		return "unknown"
	}
}

// Item is a planned expense as seen in a given month.
type Item struct {
	Expense core.PlannedExpense
	Payment *core.PaymentRecord
	Status  Status
	DueDate core.Date
}

// Paid reports whether the item is paid for the month.
func (i Item) Paid() bool {
	return i.Payment != nil && i.Payment.Paid
}

// PaidAmount is the amount actually paid, or zero when unpaid.
func (i Item) PaidAmount() core.Money {
	if !i.Paid() {
		return core.Money{}
	}
	return i.Payment.EffectiveAmount(i.Expense.Amount)
}

// AmountDiffers reports a paid amount different from the planned one.
func (i Item) AmountDiffers() bool {
	return i.Paid() && i.PaidAmount() != i.Expense.Amount
}

// Stats are the aggregate totals of a month view.
type Stats struct {
	Planned    core.Money
	Expected   core.Money
	Paid       core.Money
	Pending    core.Money
	Overdue    core.Money
	PaidCount  int
	TotalCount int
}

// MonthView is the sorted monthly list with its totals.
type MonthView struct {
	Period core.Period
	Items  []Item
	Stats  Stats
}

// IsOverdue reports whether an unpaid obligation due on dueDay is late when
// viewing period on the date today. Past months are always overdue when
// unpaid, the current month only after the due day, future months never.
func IsOverdue(dueDay int, paid bool, period core.Period, today time.Time) bool {
	if paid {
		return false
	}
	current := core.PeriodOf(today)
	switch period.Compare(current) {
	case -1:
		return true
	case 0:
		return today.Day() > dueDay
	default:
		return false
	}
}

// IsVisible reports whether p belongs in the list of period: it must have
// existed by the end of the month and not have been deactivated before the
// month began. The month of deactivation still lists it.
func IsVisible(p core.PlannedExpense, period core.Period, loc *time.Location) bool {
	if p.CreatedAt.After(period.EndIn(loc)) {
		return false
	}
	return p.DeactivatedAt == nil || !p.DeactivatedAt.Before(period.StartIn(loc))
}

// Visible filters planned to those visible in period.
func Visible(planned []core.PlannedExpense, period core.Period, loc *time.Location) []core.PlannedExpense {
	out := make([]core.PlannedExpense, 0, len(planned))
	for _, p := range planned {
		if IsVisible(p, period, loc) {
			out = append(out, p)
		}
	}
	return out
}

// ExpenseDate is the ledger date of a payment: the due day of the month,
// clamped to the month's last day.
func ExpenseDate(period core.Period, dueDay int) core.Date {
	return period.Date(dueDay)
}

// Sort orders items overdue first, then pending, then paid; within a
// bucket by due day, then name, then id.
func Sort(items []Item) {
	sort.SliceStable(items, func(a, b int) bool {
		x, y := items[a], items[b]
		if x.Status != y.Status {
			return x.Status < y.Status
		}
		if x.Expense.DueDay != y.Expense.DueDay {
			return x.Expense.DueDay < y.Expense.DueDay
		}
		if x.Expense.Name != y.Expense.Name {
			return x.Expense.Name < y.Expense.Name
		}
		return x.Expense.ID < y.Expense.ID
	})
}

// Aggregate computes the month totals in a single pass.
func Aggregate(items []Item) Stats {
	var s Stats
	for _, it := range items {
		s.TotalCount++
		s.Planned = s.Planned.Add(it.Expense.Amount)
		switch it.Status {
		case StatusPaid:
			s.PaidCount++
			s.Paid = s.Paid.Add(it.PaidAmount())
		case StatusOverdue:
			s.Overdue = s.Overdue.Add(it.Expense.Amount)
			s.Pending = s.Pending.Add(it.Expense.Amount)
		default:
			s.Pending = s.Pending.Add(it.Expense.Amount)
		}
	}
	s.Expected = s.Paid.Add(s.Pending)
	return s
}

// BuildMonthView filters, classifies, sorts and aggregates the planned
// expenses for period as seen on today. Payments for other periods are ignored.
func BuildMonthView(planned []core.PlannedExpense, payments []core.PaymentRecord, period core.Period, today time.Time) MonthView {
	byPlanned := make(map[int64]*core.PaymentRecord, len(payments))
	for i := range payments {
		if payments[i].Period != period {
			continue
		}
		byPlanned[payments[i].PlannedExpenseID] = &payments[i]
	}

	visible := Visible(planned, period, today.Location())
	items := make([]Item, 0, len(visible))
	for _, p := range visible {
		it := Item{
			Expense: p,
			Payment: byPlanned[p.ID],
			DueDate: ExpenseDate(period, p.DueDay),
		}
		switch {
		case it.Paid():
			it.Status = StatusPaid
		case IsOverdue(p.DueDay, false, period, today):
			it.Status = StatusOverdue
		default:
			it.Status = StatusPending
		}
		items = append(items, it)
	}
	Sort(items)

	return MonthView{
		Period: period,
		Items:  items,
		Stats:  Aggregate(items),
	}
}
