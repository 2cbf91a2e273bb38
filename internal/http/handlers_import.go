package http

import (
	"fmt"
	"io"
	"mime"
	"net/http"

	"orcamento/internal/events"
	"orcamento/internal/log"
	"orcamento/internal/services"
	"orcamento/internal/sheets"
	"orcamento/internal/sheets/csvfile"
	"orcamento/internal/sheets/memory"
)

const maxImportBytes = 8 << 20

// handleImport loads expenses from a CSV request body (Content-Type text/csv)
// or, without one, from the configured spreadsheet. Options come from the
// query string: create_missing and dry_run.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	const op = "import"
	q := r.URL.Query()
	opts := services.ImportOptions{
		CreateMissing: ParseBool(q.Get("create_missing")),
		DryRun:        ParseBool(q.Get("dry_run")),
	}

	var src sheets.RowReader
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "text/csv":
		rows, err := csvfile.Read(r.Context(), io.LimitReader(r.Body, maxImportBytes))
		if err != nil {
			writeError(w, r, op, fmt.Errorf("%w: %v", ErrBadRequest, err))
			return
		}
		src = memory.New(rows...)
	case s.sheet != nil:
		src = s.sheet
	default:
		writeError(w, r, op, fmt.Errorf("%w: no spreadsheet configured; send a text/csv body", ErrBadRequest))
		return
	}

	res, err := s.svc.Imports.Import(r.Context(), src, opts)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Import finished",
		log.FieldOperation, op,
		"imported", res.Imported,
		"skipped", len(res.Skipped),
		"dry_run", res.DryRun)

	b := NewResponse().JSON(res)
	msg := fmt.Sprintf("%d gastos importados, %d linhas ignoradas", res.Imported, len(res.Skipped))
	switch {
	case res.DryRun:
		b.TriggerNotification(NotificationInfo, "Simulação: "+msg, 5000)
	case len(res.Skipped) > 0:
		b.TriggerDataChanged(events.TableExpenses).TriggerNotification(NotificationWarning, msg, 5000)
	default:
		b.TriggerDataChanged(events.TableExpenses).TriggerSuccessNotification(msg)
	}
	b.Write(w)
}
