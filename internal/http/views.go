package http

import (
	"time"

	"orcamento/internal/core"
	"orcamento/internal/planning"
)

// JSON views of the domain types. Money travels as integer cents plus a
// display string.

type moneyView struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func money(m core.Money) moneyView {
	return moneyView{Cents: m.Cents, Formatted: m.String()}
}

func moneyPtr(m *core.Money) *moneyView {
	if m == nil {
		return nil
	}
	v := money(*m)
	return &v
}

type categoryView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Kind      string    `json:"tipo"`
	CreatedAt time.Time `json:"created_at"`
}

func categoryOf(c core.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon, Kind: string(c.Kind), CreatedAt: c.CreatedAt}
}

type subcategoryView struct {
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
}

type personView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func personOf(p core.Person) personView {
	return personView{ID: p.ID, Name: p.Name, Color: p.Color, AvatarURL: p.AvatarURL}
}

type expenseView struct {
	ID            int64     `json:"id"`
	Date          string    `json:"date"`
	Description   string    `json:"description"`
	Amount        moneyView `json:"amount"`
	CategoryID    *int64    `json:"category_id"`
	SubcategoryID *int64    `json:"subcategory_id"`
	PersonID      *int64    `json:"person_id"`
	CreatedAt     time.Time `json:"created_at"`

	CategoryName    string `json:"category_name,omitempty"`
	CategoryColor   string `json:"category_color,omitempty"`
	CategoryKind    string `json:"category_tipo,omitempty"`
	SubcategoryName string `json:"subcategory_name,omitempty"`
	PersonName      string `json:"person_name,omitempty"`
}

func expenseOf(e core.Expense) expenseView {
	return expenseView{
		ID:            e.ID,
		Date:          e.Date.String(),
		Description:   e.Description,
		Amount:        money(e.Amount),
		CategoryID:    e.CategoryID,
		SubcategoryID: e.SubcategoryID,
		PersonID:      e.PersonID,
		CreatedAt:     e.CreatedAt,
	}
}

func expenseRowOf(r core.ExpenseRow) expenseView {
	v := expenseOf(r.Expense)
	v.CategoryName = r.CategoryName
	v.CategoryColor = r.CategoryColor
	v.CategoryKind = string(r.CategoryKind)
	v.SubcategoryName = r.SubcategoryName
	v.PersonName = r.PersonName
	return v
}

type plannedView struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Amount        moneyView  `json:"amount"`
	CategoryID    *int64     `json:"category_id"`
	Description   string     `json:"description,omitempty"`
	DueDay        int        `json:"due_day"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

func plannedOf(p core.PlannedExpense) plannedView {
	return plannedView{
		ID:            p.ID,
		Name:          p.Name,
		Amount:        money(p.Amount),
		CategoryID:    p.CategoryID,
		Description:   p.Description,
		DueDay:        p.DueDay,
		Active:        p.Active(),
		CreatedAt:     p.CreatedAt,
		DeactivatedAt: p.DeactivatedAt,
	}
}

type paymentView struct {
	ID               int64      `json:"id"`
	PlannedExpenseID int64      `json:"planned_expense_id"`
	Year             int        `json:"year"`
	Month            int        `json:"month"`
	Paid             bool       `json:"paid"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	PaidAmount       *moneyView `json:"paid_amount,omitempty"`
	PersonID         *int64     `json:"person_id,omitempty"`
	ExpenseID        *int64     `json:"expense_id,omitempty"`
}

func paymentOf(r core.PaymentRecord) paymentView {
	return paymentView{
		ID:               r.ID,
		PlannedExpenseID: r.PlannedExpenseID,
		Year:             r.Period.Year,
		Month:            int(r.Period.Month),
		Paid:             r.Paid,
		PaidAt:           r.PaidAt,
		PaidAmount:       moneyPtr(r.PaidAmount),
		PersonID:         r.PersonID,
		ExpenseID:        r.ExpenseID,
	}
}

type monthItemView struct {
	Planned       plannedView  `json:"planned"`
	Payment       *paymentView `json:"payment,omitempty"`
	Status        string       `json:"status"`
	DueDate       string       `json:"due_date"`
	PaidAmount    moneyView    `json:"paid_amount"`
	AmountDiffers bool         `json:"amount_differs"`
}

type statsView struct {
	Planned    moneyView `json:"planned"`
	Expected   moneyView `json:"expected"`
	Paid       moneyView `json:"paid"`
	Pending    moneyView `json:"pending"`
	Overdue    moneyView `json:"overdue"`
	PaidCount  int       `json:"paid_count"`
	TotalCount int       `json:"total_count"`
}

type monthViewView struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Label string          `json:"label"`
	Items []monthItemView `json:"items"`
	Stats statsView       `json:"stats"`
}

func monthViewOf(mv planning.MonthView) monthViewView {
	out := monthViewView{
		Year:  mv.Period.Year,
		Month: int(mv.Period.Month),
		Label: mv.Period.String(),
		Items: make([]monthItemView, 0, len(mv.Items)),
		Stats: statsView{
			Planned:    money(mv.Stats.Planned),
			Expected:   money(mv.Stats.Expected),
			Paid:       money(mv.Stats.Paid),
			Pending:    money(mv.Stats.Pending),
			Overdue:    money(mv.Stats.Overdue),
			PaidCount:  mv.Stats.PaidCount,
			TotalCount: mv.Stats.TotalCount,
		},
	}
	for _, it := range mv.Items {
		item := monthItemView{
			Planned:       plannedOf(it.Expense),
			Status:        it.Status.String(),
			DueDate:       it.DueDate.String(),
			PaidAmount:    money(it.PaidAmount()),
			AmountDiffers: it.AmountDiffers(),
		}
		if it.Payment != nil {
			p := paymentOf(*it.Payment)
			item.Payment = &p
		}
		out.Items = append(out.Items, item)
	}
	return out
}

type groupView struct {
	ID     *int64    `json:"id"`
	Name   string    `json:"name"`
	Color  string    `json:"color,omitempty"`
	Amount moneyView `json:"amount"`
	Count  int       `json:"count"`
}

func groupsOf(gs []core.GroupTotal) []groupView {
	out := make([]groupView, 0, len(gs))
	for _, g := range gs {
		out = append(out, groupView{ID: g.ID, Name: g.Name, Color: g.Color, Amount: money(g.Amount), Count: g.Count})
	}
	return out
}

type monthReportView struct {
	Year       int         `json:"year"`
	Month      int         `json:"month"`
	Total      moneyView   `json:"total"`
	Fixed      moneyView   `json:"fixed"`
	Variable   moneyView   `json:"variable"`
	ByCategory []groupView `json:"by_category"`
	ByPerson   []groupView `json:"by_person"`
}

func monthReportOf(r core.MonthReport) monthReportView {
	return monthReportView{
		Year:       r.Period.Year,
		Month:      int(r.Period.Month),
		Total:      money(r.Total),
		Fixed:      money(r.Fixed),
		Variable:   money(r.Variable),
		ByCategory: groupsOf(r.ByCategory),
		ByPerson:   groupsOf(r.ByPerson),
	}
}

type yearReportView struct {
	Year   int         `json:"year"`
	Total  moneyView   `json:"total"`
	Months []groupView `json:"months"`
}

type activityView struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityName string    `json:"entity_name"`
	Details    string    `json:"details,omitempty"`
	PersonID   *int64    `json:"person_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func activityOf(a core.Activity) activityView {
	return activityView{
		ID:         a.ID,
		Action:     a.Action,
		EntityType: a.EntityType,
		EntityName: a.EntityName,
		Details:    a.Details,
		PersonID:   a.PersonID,
		CreatedAt:  a.CreatedAt,
	}
}
