package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
}

// HandleIndex handles GET /: document form and accepted requirements.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	result, err := ops.List(r.Context(), h.env, ops.ListInput{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "index", IndexPageData{
		PageData: PageData{
			Title:   "Requirements",
			Version: h.renderer.version,
			Nav:     "records",
		},
		Path:    r.URL.Query().Get("path"),
		Records: result.Records,
	})
}

// HandleReview handles GET /review?path=: the highlighted document view.
func (h *Handlers) HandleReview(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if strings.TrimSpace(path) == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	rev, err := ops.Review(r.Context(), h.env, ops.ReviewInput{Path: path, Segments: true})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	// served from the cache entry the review just read
	ext, err := ops.Extract(r.Context(), h.env, ops.ExtractInput{Path: path})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	selected := 0
	for _, c := range ext.Candidates {
		if c.Selected {
			selected++
		}
	}

	h.renderer.renderPage(w, "review", ReviewPageData{
		PageData: PageData{
			Title:   rev.Name,
			Version: h.renderer.version,
			Nav:     "review",
		},
		Path:        path,
		DocName:     rev.Name,
		ParserMode:  string(ext.ParserMode),
		ParserError: ext.ParserError,
		Segments:    rev.Segments,
		Candidates:  ext.Candidates,
		Selected:    selected,
	})
}

// HandleSelect handles POST /review/select: toggle one candidate.
func (h *Handlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	path := r.FormValue("path")

	_, err := ops.Select(r.Context(), h.env, ops.SelectInput{
		Path:        path,
		CandidateID: r.FormValue("candidate_id"),
		Selected:    parseBool(r.FormValue("selected")),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, reviewURL(path), http.StatusSeeOther)
}

// HandleAccept handles POST /review/accept: accept the selected candidates.
func (h *Handlers) HandleAccept(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	path := r.FormValue("path")

	result, err := ops.Accept(r.Context(), h.env, ops.AcceptInput{Path: path})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, reviewURL(path), http.StatusSeeOther)
}

// HandleDeleteRecord handles POST /records/{id}/delete.
func (h *Handlers) HandleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	result, err := ops.DeleteRecord(r.Context(), h.env, ops.DeleteRecordInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleAPIExtract handles GET /api/extract?path=[&force=true].
func (h *Handlers) HandleAPIExtract(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Extract(r.Context(), h.env, ops.ExtractInput{
		Path:  r.URL.Query().Get("path"),
		Force: parseBool(r.URL.Query().Get("force")),
	})
	if err != nil {
		renderAPIError(w, asReqError(err))
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIReview handles GET /api/review?path=[&segments=true].
func (h *Handlers) HandleAPIReview(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Review(r.Context(), h.env, ops.ReviewInput{
		Path:     r.URL.Query().Get("path"),
		Segments: parseBool(r.URL.Query().Get("segments")),
	})
	if err != nil {
		renderAPIError(w, asReqError(err))
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIAllocate handles GET /api/allocate?path=[&ai=true].
func (h *Handlers) HandleAPIAllocate(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Allocate(r.Context(), h.env, ops.AllocateInput{
		Path:  r.URL.Query().Get("path"),
		UseAI: parseBool(r.URL.Query().Get("ai")),
	})
	if err != nil {
		renderAPIError(w, asReqError(err))
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIRecords handles GET /api/records[?path=].
func (h *Handlers) HandleAPIRecords(w http.ResponseWriter, r *http.Request) {
	result, err := ops.List(r.Context(), h.env, ops.ListInput{Path: r.URL.Query().Get("path")})
	if err != nil {
		renderAPIError(w, asReqError(err))
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// parseBool parses a boolean query or form value.
func parseBool(s string) bool {
	return s == "true" || s == "1" || s == "on"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func reviewURL(path string) string {
	return "/review?path=" + url.QueryEscape(path)
}
