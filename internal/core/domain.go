package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Fixed    CategoryKind = "fixo"
	Variable CategoryKind = "variavel"
)

type (
	CategoryKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID        int64
		Name      string
		Color     string
		Icon      string
		Kind      CategoryKind
		CreatedAt time.Time
	}

	Subcategory struct {
		ID         int64
		CategoryID int64
		Name       string
	}

	// Person is a household member who can pay for expenses.
	Person struct {
		ID        int64
		Name      string
		Color     string
		AvatarURL string
	}

	// Expense is a row of the general ledger.
	Expense struct {
		ID            int64
		Date          Date
		Description   string
		Amount        Money
		CategoryID    *int64
		SubcategoryID *int64
		PersonID      *int64
		CreatedAt     time.Time
	}

	// ExpenseRow is an expense joined with the names of its related rows.
	ExpenseRow struct {
		Expense
		CategoryName    string
		CategoryColor   string
		CategoryKind    CategoryKind
		SubcategoryName string
		PersonName      string
	}

	// PlannedExpense is a recurring monthly obligation (a bill).
	PlannedExpense struct {
		ID            int64
		Name          string
		Amount        Money
		CategoryID    *int64
		Description   string
		DueDay        int
		CreatedAt     time.Time
		DeactivatedAt *time.Time
	}

	// PaymentRecord tracks whether a planned expense was paid in a period.
	// There is at most one record per (PlannedExpenseID, Period).
	PaymentRecord struct {
		ID               int64
		PlannedExpenseID int64
		Period           Period
		Paid             bool
		PaidAt           *time.Time
		PaidAmount       *Money
		PersonID         *int64
		// ExpenseID points at the ledger row created when the payment was confirmed.
		ExpenseID *int64
	}

	// Activity is an append-only audit log entry.
	Activity struct {
		ID         int64
		Action     string
		EntityType string
		EntityName string
		Details    string
		PersonID   *int64
		CreatedAt  time.Time
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidYear         = errors.New("invalid year")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidDueDay       = errors.New("due day must be between 1 and 31")
	ErrInvalidCategoryKind = errors.New("category kind must be 'fixo' or 'variavel'")
	ErrPayerRequired       = errors.New("payer is required")
)

const maxDescriptionLen = 200

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// Period returns the month the date falls in.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (k CategoryKind) Validate() error {
	switch k {
	case Fixed, Variable:
		return nil
	default:
		return ErrInvalidCategoryKind
	}
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return c.Kind.Validate()
}

func (p Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	return e.Amount.Validate()
}

// Active reports whether the planned expense has not been deactivated.
func (p PlannedExpense) Active() bool {
	return p.DeactivatedAt == nil
}

func (p PlannedExpense) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > maxDescriptionLen || len(p.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if p.DueDay < 1 || p.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return p.Amount.Validate()
}

// LedgerDescription is the description written on the ledger expense created
// when a payment is confirmed.
func (p PlannedExpense) LedgerDescription() string {
	name := strings.TrimSpace(p.Name)
	if desc := strings.TrimSpace(p.Description); desc != "" {
		return name + " - " + desc
	}
	return name
}

// EffectiveAmount is the amount actually paid, falling back to planned.
func (r PaymentRecord) EffectiveAmount(planned Money) Money {
	if r.PaidAmount != nil {
		return *r.PaidAmount
	}
	return planned
}

func validateDescription(s string) error {
	if len(strings.TrimSpace(s)) == 0 {
		return ErrEmptyDescription
	}
	if len(s) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}
