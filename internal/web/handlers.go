package web

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/hpungsan/texclean/internal/errors"
	"github.com/hpungsan/texclean/internal/ops"
	"github.com/hpungsan/texclean/internal/tree"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	renderer *Renderer
}

// HandleRuns handles GET /runs: recorded runs, newest first.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	input := ops.HistoryInput{
		InputDir: r.URL.Query().Get("input"),
		Limit:    parseIntParam(r, "limit", ops.DefaultHistoryLimit),
	}

	result, err := ops.History(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "runs", RunsPageData{
		PageData: PageData{
			Title:   "Runs",
			Version: h.renderer.version,
		},
		Runs:     result.Runs,
		InputDir: input.InputDir,
		Limit:    input.Limit,
	})
}

// HandleRun handles GET /runs/{id}: one run and its file decisions.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("run ID is required"))
		return
	}

	result, err := ops.History(r.Context(), h.db, ops.HistoryInput{RunID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data := RunPageData{
		PageData: PageData{
			Title:   "Run " + id,
			Version: h.renderer.version,
		},
		Run: result.Runs[0],
	}
	for _, f := range result.Files {
		switch {
		case f.Category == tree.Markup.String():
			data.Markup = append(data.Markup, f)
		case f.Used:
			data.Used = append(data.Used, f)
		default:
			data.Unused = append(data.Unused, f)
		}
	}

	h.renderer.renderPage(w, "run", data)
}

// HandleDelete handles POST /runs/{id}/delete: forget a recorded run.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := ops.Forget(r.Context(), h.db, id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
		return
	}
	http.Redirect(w, r, "/runs", http.StatusSeeOther)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}
