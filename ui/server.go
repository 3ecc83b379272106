package ui

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"metastats/app"
	"metastats/domain/core"
	"metastats/domain/stats"
	"metastats/internal/container"
	apperrors "metastats/internal/errors"
	"metastats/internal/testkit"
)

// Server is the JSON API shell. It shares the session store and services
// with the web App, so a dataset prepared in the browser can be queried over
// the API and vice versa.
type Server struct {
	router *gin.Engine

	sessions *app.SessionStore
	prepare  *app.PrepareService
	compare  *app.CompareService
	kit      *testkit.TestKit

	uploadDir string
}

// NewServer wires the API shell against an initialized container.
func NewServer(c *container.Container) *Server {
	gin.SetMode(c.Config.Server.GinMode)

	s := &Server{
		router:    gin.Default(),
		sessions:  c.Sessions,
		prepare:   c.Prepare,
		compare:   c.Compare,
		kit:       c.TestKit,
		uploadDir: c.Config.Paths.UploadDir,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.handleHealth)

	s.router.GET("/api/session", s.handleSession)
	s.router.POST("/api/session/reset", s.handleSessionReset)

	s.router.POST("/api/upload", s.handleUpload)
	s.router.POST("/api/demo", s.handleDemo)
	s.router.GET("/api/attributes", s.handleAttributes)

	s.router.POST("/api/prepare/blank-filter", s.handleBlankFilter)
	s.router.POST("/api/prepare/impute", s.handleImpute)
	s.router.POST("/api/prepare/submit", s.handleSubmit)

	s.router.POST("/api/compare/anova", s.handleAnova)
	s.router.POST("/api/compare/tukey", s.handleTukey)
	s.router.POST("/api/compare/ttest", s.handleTTest)

	// Feature endpoints take the key as a query parameter; feature keys may
	// contain slashes.
	s.router.GET("/api/charts/:kind/volcano", s.handleVolcanoJSON)
	s.router.GET("/api/features/summary", s.handleFeatureSummary)
	s.router.GET("/api/features/boxplot", s.handleFeatureBoxplot)

	s.router.GET("/api/runs", s.handleRuns)
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	log.Printf("Starting JSON API on %s", addr)
	return s.router.Run(addr)
}

// Router exposes the engine for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error": err.Error(),
		"code":  apperrors.GetCode(err),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, newSessionView(s.sessions.Current()))
}

func (s *Server) handleSessionReset(c *gin.Context) {
	sess := s.sessions.Reset()
	c.JSON(http.StatusOK, newSessionView(sess))
}

// handleUpload accepts feature_file and metadata_file in one multipart
// request and runs cleanup.
func (s *Server) handleUpload(c *gin.Context) {
	featureHeader, err := c.FormFile("feature_file")
	if err != nil {
		abortWithError(c, apperrors.UploadInvalid("missing feature_file", err))
		return
	}
	metaHeader, err := c.FormFile("metadata_file")
	if err != nil {
		abortWithError(c, apperrors.UploadInvalid("missing metadata_file", err))
		return
	}

	featurePath, err := saveMultipartUpload(s.uploadDir, featureHeader)
	if err != nil {
		abortWithError(c, err)
		return
	}
	metaPath, err := saveMultipartUpload(s.uploadDir, metaHeader)
	if err != nil {
		abortWithError(c, err)
		return
	}

	sess, err := s.prepare.LoadFiles(c.Request.Context(), app.NewSession(), featurePath, metaPath)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.sessions.Replace(sess)

	c.JSON(http.StatusOK, newSessionView(sess))
}

func (s *Server) handleDemo(c *gin.Context) {
	rawFT, rawMD, manifest := s.kit.DemoUpload()

	sess, err := s.prepare.Cleanup(c.Request.Context(), app.NewSession(), rawFT, rawMD)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.sessions.Replace(sess)

	c.JSON(http.StatusOK, gin.H{
		"session":  newSessionView(sess),
		"manifest": manifest,
	})
}

func (s *Server) handleAttributes(c *gin.Context) {
	sess := s.sessions.Current()
	if sess.Phase == app.PhaseEmpty {
		abortWithError(c, apperrors.InvalidInput("no dataset loaded"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attributes": attributeInventory(sess.Meta),
	})
}

func (s *Server) handleBlankFilter(c *gin.Context) {
	var req struct {
		Attribute string  `json:"attribute" binding:"required"`
		Level     string  `json:"level" binding:"required"`
		Cutoff    float64 `json:"cutoff"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.UploadInvalid("invalid request body", err))
		return
	}

	sess, err := s.prepare.FilterBlanks(c.Request.Context(), s.sessions.Current(), req.Attribute, req.Level, req.Cutoff)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.sessions.Replace(sess)

	c.JSON(http.StatusOK, newSessionView(sess))
}

func (s *Server) handleImpute(c *gin.Context) {
	var req struct {
		Seed int64 `json:"seed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.UploadInvalid("invalid request body", err))
		return
	}

	sess, err := s.prepare.Impute(c.Request.Context(), s.sessions.Current(), req.Seed)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.sessions.Replace(sess)

	c.JSON(http.StatusOK, newSessionView(sess))
}

func (s *Server) handleSubmit(c *gin.Context) {
	sess, err := s.prepare.Submit(c.Request.Context(), s.sessions.Current())
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.sessions.Replace(sess)

	c.JSON(http.StatusOK, newSessionView(sess))
}

func (s *Server) handleAnova(c *gin.Context) {
	var req struct {
		Attribute string `json:"attribute" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.UploadInvalid("invalid request body", err))
		return
	}

	res, err := s.compare.Anova(c.Request.Context(), s.sessions.Current(), req.Attribute)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleTukey(c *gin.Context) {
	var req struct {
		Attribute string `json:"attribute" binding:"required"`
		LevelA    string `json:"level_a" binding:"required"`
		LevelB    string `json:"level_b" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.UploadInvalid("invalid request body", err))
		return
	}

	res, err := s.compare.Tukey(c.Request.Context(), s.sessions.Current(), req.Attribute, [2]string{req.LevelA, req.LevelB})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleTTest(c *gin.Context) {
	var req struct {
		Attribute string `json:"attribute" binding:"required"`
		GroupA    string `json:"group_a" binding:"required"`
		GroupB    string `json:"group_b" binding:"required"`
		Paired    bool   `json:"paired"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.UploadInvalid("invalid request body", err))
		return
	}

	res, err := s.compare.TTest(c.Request.Context(), s.sessions.Current(), req.Attribute, req.GroupA, req.GroupB, req.Paired)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleVolcanoJSON returns the chart-ready point series for one battery so
// API clients can plot without scraping HTML.
func (s *Server) handleVolcanoJSON(c *gin.Context) {
	kind := c.Param("kind")
	req, err := parseRunRequest(kind, c.Request.URL.Query())
	if err != nil {
		abortWithError(c, err)
		return
	}

	var series stats.VolcanoSeries
	ctx := c.Request.Context()
	sess := s.sessions.Current()
	switch req.Kind {
	case string(stats.TestANOVA):
		res, rerr := s.compare.Anova(ctx, sess, req.Attribute)
		if rerr != nil {
			abortWithError(c, rerr)
			return
		}
		series = stats.AnovaVolcano(res.Rows)
	case string(stats.TestTukey):
		res, rerr := s.compare.Tukey(ctx, sess, req.Attribute, [2]string{req.LevelA, req.LevelB})
		if rerr != nil {
			abortWithError(c, rerr)
			return
		}
		series = stats.TukeyVolcano(res.Rows)
	default:
		res, rerr := s.compare.TTest(ctx, sess, req.Attribute, req.GroupA, req.GroupB, req.Paired)
		if rerr != nil {
			abortWithError(c, rerr)
			return
		}
		series = stats.TTestVolcano(res.Rows)
	}

	c.JSON(http.StatusOK, gin.H{
		"kind":   kind,
		"x_axis": volcanoAxisLabel(kind),
		"series": series,
	})
}

// handleFeatureSummary returns per-group descriptive statistics for one
// feature.
func (s *Server) handleFeatureSummary(c *gin.Context) {
	feature, err := core.ParseFeatureKey(c.Query("feature"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	attribute := c.Query("attribute")
	if attribute == "" {
		abortWithError(c, apperrors.InvalidInput("attribute is required"))
		return
	}

	summaries, err := s.compare.Describe(c.Request.Context(), s.sessions.Current(), attribute, feature)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"feature":   feature,
		"attribute": attribute,
		"groups":    summaries,
	})
}

// handleFeatureBoxplot returns raw per-group values plus the significance
// bracket for one feature.
func (s *Server) handleFeatureBoxplot(c *gin.Context) {
	feature, err := core.ParseFeatureKey(c.Query("feature"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	kind := c.Query("kind")
	if kind == "" {
		kind = string(stats.TestANOVA)
	}
	req, err := parseRunRequest(kind, c.Request.URL.Query())
	if err != nil {
		abortWithError(c, err)
		return
	}

	sess := s.sessions.Current()
	data, err := featureBoxAgainstRun(c.Request.Context(), s.compare, sess, feature, req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) handleRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			abortWithError(c, apperrors.InvalidInput("limit must be a positive integer"))
			return
		}
		limit = v
	}

	runs, err := s.compare.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}
