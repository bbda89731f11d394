package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/requirement"
	"github.com/hpungsan/reqlens/internal/review"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "records", "review"
}

// IndexPageData is the template data for the landing page.
type IndexPageData struct {
	PageData
	Path    string
	Records []requirement.Record
}

// ReviewPageData is the template data for the highlighted document view.
type ReviewPageData struct {
	PageData
	Path        string
	DocName     string
	ParserMode  string
	ParserError string
	Segments    []review.Segment
	Candidates  []requirement.Candidate
	Selected    int
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *zap.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *zap.Logger) *Renderer {
	funcMap := template.FuncMap{
		"formatTime":  formatTime,
		"formatScore": func(s float64) string { return fmt.Sprintf("%.2f", s) },
		"highlight":   highlight,
		"deref":       deref,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"index":  "index.html",
		"review": "review.html",
		"error":  "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// The page is rendered into a buffer first so a template failure never sends
// a half-written 200.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	rErr := asReqError(err)
	if rErr.Code == errors.ErrInternal {
		r.logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
	}

	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		renderAPIError(w, rErr)
		return
	}

	r.renderPageStatus(w, rErr.Status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", rErr.Status),
			Version: r.version,
		},
		StatusCode: rErr.Status,
		Message:    rErr.Message,
	})
}

func asReqError(err error) *errors.ReqError {
	if rErr, ok := errors.As(err); ok {
		return rErr
	}
	return errors.NewInternal(err)
}

// renderAPIError writes the {error:{code,message,status}} payload.
func renderAPIError(w http.ResponseWriter, rErr *errors.ReqError) {
	message := rErr.Message
	if rErr.Code == errors.ErrInternal {
		message = "an internal error occurred"
	}
	renderJSON(w, rErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(rErr.Code),
			"message": message,
			"status":  rErr.Status,
		},
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// highlight renders review segments as HTML. Plain runs are escaped; match
// runs become <mark> elements classed by confidence and anchored by
// candidate id.
func highlight(segments []review.Segment) template.HTML {
	var b strings.Builder
	for _, s := range segments {
		if s.Kind != review.SegmentMatch || s.Match == nil {
			b.WriteString(template.HTMLEscapeString(s.Text))
			continue
		}
		conf := strings.ToLower(string(s.Match.Confidence))
		if conf == "" {
			conf = "low"
		}
		fmt.Fprintf(&b, `<mark class="confidence-%s" data-candidate="%s">%s</mark>`,
			template.HTMLEscapeString(conf),
			template.HTMLEscapeString(s.Match.CandidateID),
			template.HTMLEscapeString(s.Text))
	}
	return template.HTML(b.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// deref returns the allocation text, or "" when unset.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
