package ui

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"metastats/adapters/tabular"
	apperrors "metastats/internal/errors"
)

// handleExport streams one battery as a CSV or XLSX download. The run is
// re-fetched through the memo cache, so exporting never recomputes.
func (a *App) handleExport(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	format := chi.URLParam(r, "format")

	req, err := parseRunRequest(kind, r.URL.Query())
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}

	view, _, err := a.executeRun(r.Context(), a.sessions.Current(), req)
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}

	filename := fmt.Sprintf("%s_%s.%s", kind, view.Attribute, format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		err = tabular.WriteCSV(w, view.Export)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = tabular.WriteXLSX(w, view.Export)
	default:
		a.renderError(w, http.StatusBadRequest, apperrors.InvalidInput("format must be csv or xlsx"))
		return
	}
	if err != nil {
		// The body may be partially written by now; render the error anyway
		// so failures before the first flush still get a clean page.
		a.renderError(w, http.StatusInternalServerError, err)
	}
}
