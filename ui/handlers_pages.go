package ui

import (
	"html/template"
	"net/http"
	"sort"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"metastats/app"
)

// handleIndex renders the landing page: upload form, demo loader, and the
// current session card.
func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := a.sessions.Current()
	a.renderTemplate(w, "index.html", map[string]interface{}{
		"Session": newSessionView(sess),
	})
}

// handlePreparePage renders the cleanup trail and the blank-filter, impute,
// and submit forms for the current session.
func (a *App) handlePreparePage(w http.ResponseWriter, r *http.Request) {
	sess := a.sessions.Current()
	if sess.Phase == app.PhaseEmpty {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	missing := make([]prepareMissingRow, 0, len(sess.Summary.Missingness))
	for _, m := range sess.Summary.Missingness {
		if m.Percent > 0 {
			missing = append(missing, prepareMissingRow{Feature: m.Feature.String(), Percent: m.Percent})
		}
	}
	sort.SliceStable(missing, func(i, j int) bool { return missing[i].Percent > missing[j].Percent })
	if len(missing) > 15 {
		missing = missing[:15]
	}

	a.renderTemplate(w, "prepare.html", map[string]interface{}{
		"Session":       newSessionView(sess),
		"Attributes":    attributeInventory(sess.Meta),
		"Missing":       missing,
		"DefaultCutoff": a.prepare.DefaultBlankCutoff(),
		"DefaultSeed":   a.prepare.DefaultSeed(),
	})
}

type prepareMissingRow struct {
	Feature string
	Percent float64
}

// handleComparePage renders the test pickers plus the recent run history.
func (a *App) handleComparePage(w http.ResponseWriter, r *http.Request) {
	sess := a.sessions.Current()
	if !sess.Submitted() {
		http.Redirect(w, r, "/prepare", http.StatusSeeOther)
		return
	}

	runs, err := a.compare.RecentRuns(r.Context(), 10)
	if err != nil {
		// Run history is cosmetic on this page; the pickers still work.
		runs = nil
	}

	a.renderTemplate(w, "compare.html", map[string]interface{}{
		"Session":    newSessionView(sess),
		"Attributes": attributeInventory(sess.Meta),
		"Runs":       runs,
	})
}

// handleDocs renders the embedded user guide from markdown.
func (a *App) handleDocs(w http.ResponseWriter, r *http.Request) {
	source, err := embeddedFiles.ReadFile("docs/guide.md")
	if err != nil {
		a.renderError(w, http.StatusInternalServerError, err)
		return
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	rendered := markdown.ToHTML(source, p, renderer)

	a.renderTemplate(w, "docs.html", map[string]interface{}{
		"Content": template.HTML(rendered),
	})
}
