package http

import (
	"net/http"

	"orcamento/internal/core"
	"orcamento/internal/events"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	period, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, "list expenses", err)
		return
	}
	rows, err := s.svc.Expenses.List(r.Context(), period)
	if err != nil {
		writeError(w, r, "list expenses", err)
		return
	}
	out := make([]expenseView, 0, len(rows))
	for _, row := range rows {
		out = append(out, expenseRowOf(row))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, "get expense", err)
		return
	}
	e, err := s.svc.Expenses.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, "get expense", err)
		return
	}
	NewResponse().JSON(expenseOf(e)).Write(w)
}

// expenseFrom reads the editable fields of a ledger expense. A missing date
// means today.
func (s *Server) expenseFrom(p *RequestBodyParser) (core.Expense, error) {
	var e core.Expense
	amount, err := p.Money("amount")
	if err != nil {
		return e, err
	}
	date := core.Date{Time: s.now()}
	if p.Get("date") != "" {
		if date, err = p.Date("date"); err != nil {
			return e, err
		}
	}
	e.Date = core.NewDate(date.Year(), int(date.Month()), date.Day())
	e.Description = p.Get("description")
	e.Amount = amount
	if e.CategoryID, err = p.OptionalID("category_id"); err != nil {
		return e, err
	}
	if e.SubcategoryID, err = p.OptionalID("subcategory_id"); err != nil {
		return e, err
	}
	if e.PersonID, err = p.OptionalID("person_id"); err != nil {
		return e, err
	}
	return e, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	e, err := s.expenseFrom(body)
	if err != nil {
		writeError(w, r, "create expense", err)
		return
	}
	created, err := s.svc.Expenses.Create(r.Context(), e)
	if err != nil {
		writeError(w, r, "create expense", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerDataChanged(events.TableExpenses).
		TriggerSuccessNotification("Gasto registrado: " + created.Description + " (" + created.Amount.String() + ")").
		JSON(expenseOf(created)).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, "update expense", err)
		return
	}
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	e, err := s.expenseFrom(body)
	if err != nil {
		writeError(w, r, "update expense", err)
		return
	}
	e.ID = id
	updated, err := s.svc.Expenses.Update(r.Context(), e)
	if err != nil {
		writeError(w, r, "update expense", err)
		return
	}
	NewResponse().
		TriggerDataChanged(events.TableExpenses).
		TriggerSuccessNotification("Gasto atualizado").
		JSON(expenseOf(updated)).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, "delete expense", err)
		return
	}
	if err := s.svc.Expenses.Delete(r.Context(), id); err != nil {
		writeError(w, r, "delete expense", err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		TriggerDataChanged(events.TableExpenses).
		TriggerSuccessNotification("Gasto removido").
		Write(w)
}
