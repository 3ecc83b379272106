package ui

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"metastats/app"
	"metastats/domain/core"
	"metastats/domain/stats"
	apperrors "metastats/internal/errors"
)

// runRequest carries the parameters of one comparison run, parsed from a
// form post or a results-page query string.
type runRequest struct {
	Kind      string
	Attribute string
	LevelA    string
	LevelB    string
	GroupA    string
	GroupB    string
	Paired    bool
}

func parseRunRequest(kind string, q url.Values) (runRequest, error) {
	req := runRequest{Kind: kind, Attribute: q.Get("attribute")}
	if req.Attribute == "" {
		return req, apperrors.InvalidInput("attribute is required")
	}

	switch kind {
	case string(stats.TestANOVA):
	case string(stats.TestTukey):
		req.LevelA = q.Get("level_a")
		req.LevelB = q.Get("level_b")
		if req.LevelA == "" || req.LevelB == "" {
			return req, apperrors.InvalidInput("tukey requires level_a and level_b")
		}
		if req.LevelA == req.LevelB {
			return req, apperrors.InvalidInput("tukey levels must differ")
		}
	case string(stats.TestWelchTTest), string(stats.TestPairedTTest):
		req.GroupA = q.Get("group_a")
		req.GroupB = q.Get("group_b")
		req.Paired = kind == string(stats.TestPairedTTest) || q.Get("paired") == "true"
		if req.GroupA == "" || req.GroupB == "" {
			return req, apperrors.InvalidInput("t-test requires group_a and group_b")
		}
		if req.GroupA == req.GroupB {
			return req, apperrors.InvalidInput("t-test groups must differ")
		}
	default:
		return req, apperrors.InvalidInput("unknown test kind: " + kind)
	}
	return req, nil
}

// executeRun dispatches one comparison through the services. Repeat requests
// for the same parameters are served from the memo cache, which is what lets
// results pages, charts and exports all re-ask for the same battery.
func (a *App) executeRun(ctx context.Context, sess app.Session, req runRequest) (resultView, stats.VolcanoSeries, error) {
	switch req.Kind {
	case string(stats.TestANOVA):
		res, err := a.compare.Anova(ctx, sess, req.Attribute)
		if err != nil {
			return resultView{}, stats.VolcanoSeries{}, err
		}
		return anovaView(res, sess), stats.AnovaVolcano(res.Rows), nil

	case string(stats.TestTukey):
		res, err := a.compare.Tukey(ctx, sess, req.Attribute, [2]string{req.LevelA, req.LevelB})
		if err != nil {
			return resultView{}, stats.VolcanoSeries{}, err
		}
		return tukeyView(res, sess), stats.TukeyVolcano(res.Rows), nil

	case string(stats.TestWelchTTest), string(stats.TestPairedTTest):
		res, err := a.compare.TTest(ctx, sess, req.Attribute, req.GroupA, req.GroupB, req.Paired)
		if err != nil {
			return resultView{}, stats.VolcanoSeries{}, err
		}
		return ttestView(res, sess), stats.TTestVolcano(res.Rows), nil
	}
	return resultView{}, stats.VolcanoSeries{}, apperrors.InvalidInput("unknown test kind: " + req.Kind)
}

func formToQuery(r *http.Request, keys ...string) url.Values {
	q := url.Values{}
	for _, key := range keys {
		if v := r.FormValue(key); v != "" {
			q.Set(key, v)
		}
	}
	return q
}

// handleRunAnova validates the pick, runs the battery, and lands on the
// results page.
func (a *App) handleRunAnova(w http.ResponseWriter, r *http.Request) {
	a.runAndRedirect(w, r, string(stats.TestANOVA), formToQuery(r, "attribute"))
}

func (a *App) handleRunTukey(w http.ResponseWriter, r *http.Request) {
	a.runAndRedirect(w, r, string(stats.TestTukey), formToQuery(r, "attribute", "level_a", "level_b"))
}

func (a *App) handleRunTTest(w http.ResponseWriter, r *http.Request) {
	kind := string(stats.TestWelchTTest)
	if r.FormValue("paired") == "true" {
		kind = string(stats.TestPairedTTest)
	}
	a.runAndRedirect(w, r, kind, formToQuery(r, "attribute", "group_a", "group_b", "paired"))
}

func (a *App) runAndRedirect(w http.ResponseWriter, r *http.Request, kind string, q url.Values) {
	req, err := parseRunRequest(kind, q)
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}

	// Run now so failures surface on the form post, not the results page.
	if _, _, err := a.executeRun(r.Context(), a.sessions.Current(), req); err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}

	http.Redirect(w, r, "/results/"+kind+"?"+q.Encode(), http.StatusSeeOther)
}

// handleResults renders one battery's rows, skips, and download links.
func (a *App) handleResults(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
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

	a.renderTemplate(w, "results.html", view)
}

// featureBoxAgainstRun assembles one feature's per-group boxplot, bracketed
// with the corrected p-value the named battery assigned it. Features the
// battery skipped keep the neutral bracket.
func featureBoxAgainstRun(ctx context.Context, compare *app.CompareService, sess app.Session,
	feature core.FeatureKey, req runRequest) (stats.BoxplotData, error) {

	groups, err := stats.FeatureGroupValues(sess.Matrix, sess.Meta, req.Attribute, feature)
	if err != nil {
		return stats.BoxplotData{}, err
	}

	correctedP := 1.0
	switch req.Kind {
	case string(stats.TestANOVA):
		res, err := compare.Anova(ctx, sess, req.Attribute)
		if err != nil {
			return stats.BoxplotData{}, err
		}
		for _, row := range res.Rows {
			if row.Feature == feature {
				correctedP = row.PCorrected
				break
			}
		}
	case string(stats.TestTukey):
		res, err := compare.Tukey(ctx, sess, req.Attribute, [2]string{req.LevelA, req.LevelB})
		if err != nil {
			return stats.BoxplotData{}, err
		}
		for _, row := range res.Rows {
			if row.Feature == feature {
				correctedP = row.PCorrected
				break
			}
		}
	case string(stats.TestWelchTTest), string(stats.TestPairedTTest):
		res, err := compare.TTest(ctx, sess, req.Attribute, req.GroupA, req.GroupB, req.Paired)
		if err != nil {
			return stats.BoxplotData{}, err
		}
		for _, row := range res.Rows {
			if row.Feature == feature {
				correctedP = row.PCorrected
				break
			}
		}
	}

	return stats.NewBoxplotData(feature, groups, correctedP), nil
}
