package ui

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"metastats/domain/core"
	"metastats/domain/stats"
)

func volcanoAxisLabel(kind string) string {
	switch kind {
	case string(stats.TestANOVA):
		return "ln(F)"
	case string(stats.TestTukey):
		return "mean difference"
	default:
		return "t statistic"
	}
}

// handleVolcano renders the volcano plot for one finished battery as a
// standalone ECharts document.
func (a *App) handleVolcano(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	req, err := parseRunRequest(kind, r.URL.Query())
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}

	view, series, err := a.executeRun(r.Context(), a.sessions.Current(), req)
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.renderer.Volcano(w, view.Title, volcanoAxisLabel(kind), series); err != nil {
		a.renderError(w, http.StatusInternalServerError, err)
	}
}

// handleFeatureBox renders one feature's per-group boxplot, bracketed with
// the corrected p-value from the battery the query names.
func (a *App) handleFeatureBox(w http.ResponseWriter, r *http.Request) {
	feature, err := core.ParseFeatureKey(r.URL.Query().Get("feature"))
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = string(stats.TestANOVA)
	}
	req, err := parseRunRequest(kind, r.URL.Query())
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}

	data, err := featureBoxAgainstRun(r.Context(), a.compare, a.sessions.Current(), feature, req)
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.renderer.Boxplot(w, data); err != nil {
		a.renderError(w, http.StatusInternalServerError, err)
	}
}
