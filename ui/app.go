package ui

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"metastats/adapters/figures"
	"metastats/app"
	"metastats/internal/container"
	"metastats/internal/testkit"
)

//go:embed templates/* static/* docs/*
var embeddedFiles embed.FS

// App is the browser-facing shell. Pages are server-rendered from embedded
// templates; every analysis action round-trips through the same services the
// JSON API uses, so both shells see one session.
type App struct {
	router    *chi.Mux
	templates *template.Template

	sessions *app.SessionStore
	prepare  *app.PrepareService
	compare  *app.CompareService
	kit      *testkit.TestKit
	renderer *figures.Renderer

	uploadDir string
}

// NewApp wires the web shell against an initialized container.
func NewApp(c *container.Container) (*App, error) {
	funcMap := template.FuncMap{
		"mul": func(a, b int) int { return a * b },
		"add": func(a, b int) int { return a + b },
		"sci": func(v float64) string { return fmt.Sprintf("%.3g", v) },
		"pct": func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	}

	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles,
		"templates/*.html", "templates/fragments/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	a := &App{
		router:    chi.NewRouter(),
		templates: templates,
		sessions:  c.Sessions,
		prepare:   c.Prepare,
		compare:   c.Compare,
		kit:       c.TestKit,
		renderer:  figures.NewRenderer(),
		uploadDir: c.Config.Paths.UploadDir,
	}

	a.setupMiddleware()
	a.setupRoutes()

	return a, nil
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))

	// Serve embedded static files
	a.router.Handle("/static/*", http.StripPrefix("/", http.FileServer(http.FS(embeddedFiles))))
}

func (a *App) setupRoutes() {
	// Pages
	a.router.Get("/", a.handleIndex)
	a.router.Get("/prepare", a.handlePreparePage)
	a.router.Get("/compare", a.handleComparePage)
	a.router.Get("/docs", a.handleDocs)

	// Dataset intake
	a.router.Post("/upload", a.handleUpload)
	a.router.Post("/demo", a.handleDemo)
	a.router.Post("/session/reset", a.handleReset)

	// Prepare pipeline actions
	a.router.Post("/prepare/blank-filter", a.handleBlankFilter)
	a.router.Post("/prepare/impute", a.handleImpute)
	a.router.Post("/prepare/submit", a.handleSubmit)

	// Comparison runs; results pages re-run through the memo cache
	a.router.Post("/compare/anova", a.handleRunAnova)
	a.router.Post("/compare/tukey", a.handleRunTukey)
	a.router.Post("/compare/ttest", a.handleRunTTest)
	a.router.Get("/results/{kind}", a.handleResults)

	// Chart and export endpoints. The boxplot takes its feature as a query
	// parameter; feature keys may contain slashes.
	a.router.Get("/charts/{kind}/volcano", a.handleVolcano)
	a.router.Get("/charts/feature/box", a.handleFeatureBox)
	a.router.Get("/export/{kind}.{format}", a.handleExport)
}

// Start starts the HTTP server
func (a *App) Start(addr string) error {
	log.Printf("Starting web UI on %s", addr)
	return http.ListenAndServe(addr, a.router)
}

// Router exposes the mux for tests and embedding.
func (a *App) Router() http.Handler {
	return a.router
}

// Template helpers
func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.templates.ExecuteTemplate(w, templateName, data); err != nil {
		log.Printf("Template error for %s: %v", templateName, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

func (a *App) renderError(w http.ResponseWriter, status int, err error) {
	log.Printf("Request failed: %v", err)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	data := map[string]interface{}{
		"Status":  status,
		"Message": err.Error(),
	}
	if terr := a.templates.ExecuteTemplate(w, "error.html", data); terr != nil {
		log.Printf("Template error for error.html: %v", terr)
	}
}
