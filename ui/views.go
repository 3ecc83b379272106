package ui

import (
	"net/http"
	"net/url"
	"sort"

	"metastats/adapters/tabular"
	"metastats/app"
	apperrors "metastats/internal/errors"

	"metastats/domain/core"
	"metastats/domain/stats"
	"metastats/domain/table"
)

// SessionView is the session state both shells expose: phase, dimensions,
// and the cleanup trail, without the tables themselves.
type SessionView struct {
	ID         core.SessionID     `json:"session_id"`
	Phase      app.Phase          `json:"phase"`
	Generation uint64             `json:"generation"`
	Features   int                `json:"features"`
	Samples    int                `json:"samples"`
	Summary    app.CleanupSummary `json:"summary"`
	Submitted  bool               `json:"submitted"`
}

func newSessionView(sess app.Session) SessionView {
	return SessionView{
		ID:         sess.ID,
		Phase:      sess.Phase,
		Generation: sess.Generation,
		Features:   sess.Feature.FeatureCount(),
		Samples:    sess.Feature.SampleCount(),
		Summary:    sess.Summary,
		Submitted:  sess.Submitted(),
	}
}

// AttributeView is one metadata attribute and its level breakdown, the raw
// material for group pickers.
type AttributeView struct {
	Name    string             `json:"name"`
	Display string             `json:"display"`
	Levels  []table.LevelCount `json:"levels"`
	Binary  bool               `json:"binary"`
}

func attributeInventory(md table.Metadata) []AttributeView {
	binary := make(map[string]bool)
	for _, attr := range md.BinaryAttributes() {
		binary[attr] = true
	}

	views := make([]AttributeView, 0, len(md.Attributes))
	for _, attr := range md.Attributes {
		counts, err := md.LevelCounts(attr)
		if err != nil {
			continue
		}
		views = append(views, AttributeView{
			Name:    attr,
			Display: table.DisplayName(attr),
			Levels:  counts,
			Binary:  binary[attr],
		})
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}

// resultView is one finished battery shaped for the results template: the
// export rows double as the display rows, and the link fields carry the run
// parameters back to the chart and download endpoints. Links are encoded
// here because feature keys and level names are free text.
type resultView struct {
	Title            string
	Kind             string
	Attribute        string
	TestedCount      int
	SignificantCount int
	ComputedAt       core.Timestamp
	Fingerprint      core.Fingerprint
	Export           tabular.Export
	Skipped          []stats.SkippedFeature
	Query            url.Values
	VolcanoURL       string
	CSVURL           string
	XLSXURL          string
	Session          SessionView
}

// withLinks derives the chart and export links from Kind and Query.
func (v resultView) withLinks() resultView {
	enc := v.Query.Encode()
	v.VolcanoURL = "/charts/" + v.Kind + "/volcano?" + enc
	v.CSVURL = "/export/" + v.Kind + ".csv?" + enc
	v.XLSXURL = "/export/" + v.Kind + ".xlsx?" + enc
	return v
}

// FeatureBoxURL links one result row to its per-group boxplot, keeping the
// run parameters so the bracket shows this battery's corrected p.
func (v resultView) FeatureBoxURL(feature string) string {
	q := url.Values{"feature": {feature}, "kind": {v.Kind}}
	for key, vals := range v.Query {
		q[key] = vals
	}
	return "/charts/feature/box?" + q.Encode()
}

func anovaView(res *stats.AnovaResult, sess app.Session) resultView {
	sig := 0
	for _, row := range res.Rows {
		if row.Significant {
			sig++
		}
	}
	return resultView{
		Title:            "One-way ANOVA over " + table.DisplayName(res.Attribute),
		Kind:             string(stats.TestANOVA),
		Attribute:        res.Attribute,
		TestedCount:      res.TestedCount,
		SignificantCount: sig,
		ComputedAt:       res.ComputedAt,
		Fingerprint:      res.Fingerprint,
		Export:           tabular.AnovaExport(res),
		Skipped:          res.Skipped,
		Query:            url.Values{"attribute": {res.Attribute}},
		Session:          newSessionView(sess),
	}.withLinks()
}

func tukeyView(res *stats.TukeyResult, sess app.Session) resultView {
	sig := 0
	for _, row := range res.Rows {
		if row.Significant {
			sig++
		}
	}
	return resultView{
		Title:            "Tukey HSD " + res.Levels[0] + " vs " + res.Levels[1],
		Kind:             string(stats.TestTukey),
		Attribute:        res.Attribute,
		TestedCount:      res.TestedCount,
		SignificantCount: sig,
		ComputedAt:       res.ComputedAt,
		Fingerprint:      res.Fingerprint,
		Export:           tabular.TukeyExport(res),
		Skipped:          res.Skipped,
		Query: url.Values{
			"attribute": {res.Attribute},
			"level_a":   {res.Levels[0]},
			"level_b":   {res.Levels[1]},
		},
		Session: newSessionView(sess),
	}.withLinks()
}

func ttestView(res *stats.TTestResult, sess app.Session) resultView {
	sig := 0
	for _, row := range res.Rows {
		if row.Significant {
			sig++
		}
	}
	kind := stats.TestWelchTTest
	paired := "false"
	if res.Paired {
		kind = stats.TestPairedTTest
		paired = "true"
	}
	return resultView{
		Title:            "t-test " + res.GroupA + " vs " + res.GroupB,
		Kind:             string(kind),
		Attribute:        res.Attribute,
		TestedCount:      res.TestedCount,
		SignificantCount: sig,
		ComputedAt:       res.ComputedAt,
		Fingerprint:      res.Fingerprint,
		Export:           tabular.TTestExport(res),
		Skipped:          res.Skipped,
		Query: url.Values{
			"attribute": {res.Attribute},
			"group_a":   {res.GroupA},
			"group_b":   {res.GroupB},
			"paired":    {paired},
		},
		Session: newSessionView(sess),
	}.withLinks()
}

// statusFor maps service errors onto HTTP status codes. Domain sentinels are
// checked first; AppError codes cover the adapter layer.
func statusFor(err error) int {
	switch {
	case core.IsNotFoundError(err):
		return http.StatusNotFound
	case core.IsCleanupError(err), core.IsInsufficientData(err),
		core.IsUnequalGroupSize(err), core.IsValidationError(err):
		return http.StatusUnprocessableEntity
	}

	switch apperrors.GetCode(err) {
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidInput, apperrors.CodeUploadInvalid:
		return http.StatusBadRequest
	case apperrors.CodeDatabaseError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
