package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"orcamento/internal/core"
)

func (s *Server) handleMonthReport(w http.ResponseWriter, r *http.Request) {
	period, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, "month report", err)
		return
	}
	rep, err := s.svc.Reports.MonthReport(r.Context(), period)
	if err != nil {
		writeError(w, r, "month report", err)
		return
	}
	NewResponse().JSON(monthReportOf(rep)).Write(w)
}

func (s *Server) handleYearReport(w http.ResponseWriter, r *http.Request) {
	year := s.now().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "year report", fmt.Errorf("%w: %q", core.ErrInvalidYear, v))
			return
		}
		year = y
	}
	rep, err := s.svc.Reports.YearReport(r.Context(), year)
	if err != nil {
		writeError(w, r, "year report", err)
		return
	}
	NewResponse().JSON(yearReportView{
		Year:   rep.Year,
		Total:  money(rep.Total),
		Months: groupsOf(rep.Months),
	}).Write(w)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.svc.Activities.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, "list activities", err)
		return
	}
	out := make([]activityView, 0, len(list))
	for _, a := range list {
		out = append(out, activityOf(a))
	}
	NewResponse().JSON(out).Write(w)
}
