package http

import (
	"net/http"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/log"
	"orcamento/internal/services"
)

// handleMonthView returns the planned expenses of a month with their
// payment status and the totals shown above the list.
func (s *Server) handleMonthView(w http.ResponseWriter, r *http.Request) {
	period, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, "month view", err)
		return
	}
	mv, err := s.svc.Planned.MonthView(r.Context(), period)
	if err != nil {
		writeError(w, r, "month view", err)
		return
	}
	NewResponse().JSON(monthViewOf(mv)).Write(w)
}

func (s *Server) handleListPlanned(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Planned.List(r.Context(), ParseBool(r.URL.Query().Get("include_inactive")))
	if err != nil {
		writeError(w, r, "list planned expenses", err)
		return
	}
	out := make([]plannedView, 0, len(list))
	for _, p := range list {
		out = append(out, plannedOf(p))
	}
	NewResponse().JSON(out).Write(w)
}

func plannedInput(p *RequestBodyParser) (services.PlannedInput, error) {
	amount, err := p.Money("amount")
	if err != nil {
		return services.PlannedInput{}, err
	}
	dueDay, err := p.Int("due_day")
	if err != nil {
		return services.PlannedInput{}, err
	}
	categoryID, err := p.OptionalID("category_id")
	if err != nil {
		return services.PlannedInput{}, err
	}
	return services.PlannedInput{
		Name:        p.Get("name"),
		Amount:      amount,
		CategoryID:  categoryID,
		Description: p.Get("description"),
		DueDay:      dueDay,
	}, nil
}

func (s *Server) handleCreatePlanned(w http.ResponseWriter, r *http.Request) {
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	in, err := plannedInput(body)
	if err != nil {
		writeError(w, r, "create planned expense", err)
		return
	}
	created, err := s.svc.Planned.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, "create planned expense", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerDataChanged(events.TablePlannedExpenses).
		TriggerSuccessNotification("Gasto planejado cadastrado").
		JSON(plannedOf(created)).
		Write(w)
}

func (s *Server) handleUpdatePlanned(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, "update planned expense", err)
		return
	}
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	in, err := plannedInput(body)
	if err != nil {
		writeError(w, r, "update planned expense", err)
		return
	}
	updated, err := s.svc.Planned.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, "update planned expense", err)
		return
	}
	NewResponse().
		TriggerDataChanged(events.TablePlannedExpenses).
		TriggerSuccessNotification("Gasto planejado atualizado").
		JSON(plannedOf(updated)).
		Write(w)
}

func (s *Server) handleSetPlannedActive(active bool) http.HandlerFunc {
	op, message := "deactivate planned expense", "Gasto planejado desativado"
	if active {
		op, message = "reactivate planned expense", "Gasto planejado reativado"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := PathID(r, "id")
		if err != nil {
			writeError(w, r, op, err)
			return
		}
		if active {
			err = s.svc.Planned.Reactivate(r.Context(), id)
		} else {
			err = s.svc.Planned.Deactivate(r.Context(), id)
		}
		if err != nil {
			writeError(w, r, op, err)
			return
		}
		NewResponse().
			Status(http.StatusNoContent).
			TriggerDataChanged(events.TablePlannedExpenses).
			TriggerSuccessNotification(message).
			Write(w)
	}
}

// handleConfirmPayment marks a planned expense paid for the month named in
// the body (or the query string), with the amount actually paid and who
// paid it.
func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	const op = "confirm payment"
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	period, err := periodFrom(body, r, s.now())
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	amount, err := body.Money("amount")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	personID, err := body.OptionalID("person_id")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	req := services.ConfirmRequest{PlannedExpenseID: id, Period: period, Amount: amount}
	if personID != nil {
		req.PersonID = *personID
	}

	rec, err := s.svc.Planned.ConfirmPayment(r.Context(), req)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Payment confirmed",
		log.FieldPlannedID, id,
		log.FieldPeriod, period.String(),
		log.FieldAmountCents, amount.Cents)
	NewResponse().
		Status(http.StatusCreated).
		TriggerDataChanged(events.TablePayments).
		TriggerSuccessNotification("Pagamento confirmado").
		JSON(paymentOf(rec)).
		Write(w)
}

// handleReversePayment undoes a confirmation: the payment is cleared and the
// ledger expense it created is removed.
func (s *Server) handleReversePayment(w http.ResponseWriter, r *http.Request) {
	const op = "reverse payment"
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	period, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if err := s.svc.Planned.ReversePayment(r.Context(), id, period); err != nil {
		writeError(w, r, op, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Payment reversed",
		log.FieldPlannedID, id,
		log.FieldPeriod, period.String())
	NewResponse().
		Status(http.StatusNoContent).
		TriggerDataChanged(events.TablePayments).
		TriggerSuccessNotification("Pagamento desfeito").
		Write(w)
}

// periodFrom reads year and month from the body, falling back to the query
// string and then to the current month.
func periodFrom(body *RequestBodyParser, r *http.Request, now time.Time) (core.Period, error) {
	q := r.URL.Query()
	for _, key := range []string{"year", "month"} {
		if body.Has(key) {
			q.Set(key, body.Get(key))
		}
	}
	return ParseMonthParams(q, now)
}
