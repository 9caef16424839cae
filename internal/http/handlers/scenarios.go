package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/realty-voice-platform/internal/history"
	"github.com/wolfman30/realty-voice-platform/internal/prompts"
	"github.com/wolfman30/realty-voice-platform/internal/scenario"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

const maxBodyBytes = 1 << 20

// ScenarioRunner executes persisted scenarios.
type ScenarioRunner interface {
	Run(ctx context.Context, ref string) (scenario.ScenarioRunResult, error)
	RunAll(ctx context.Context) (scenario.RunAllResult, error)
}

// ScenarioGenerator drafts scenarios from a description.
type ScenarioGenerator interface {
	Generate(ctx context.Context, req scenario.GenerateRequest) (scenario.ScenarioCreateRequest, error)
}

// PromptLibrary exposes the prompt templates scenarios run against.
type PromptLibrary interface {
	List() ([]string, error)
	Content(name string) (string, error)
	Fields(name string) ([]string, error)
}

// RunnerHandler serves the scenario runner API.
type RunnerHandler struct {
	catalog   scenario.Catalog
	runner    ScenarioRunner
	generator ScenarioGenerator
	prompts   PromptLibrary
	history   history.Store
	logger    *logging.Logger
}

// RunnerDeps groups RunnerHandler collaborators. History is optional.
type RunnerDeps struct {
	Catalog   scenario.Catalog
	Runner    ScenarioRunner
	Generator ScenarioGenerator
	Prompts   PromptLibrary
	History   history.Store
	Logger    *logging.Logger
}

func NewRunnerHandler(deps RunnerDeps) *RunnerHandler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &RunnerHandler{
		catalog:   deps.Catalog,
		runner:    deps.Runner,
		generator: deps.Generator,
		prompts:   deps.Prompts,
		history:   deps.History,
		logger:    logger,
	}
}

// ListScenarios handles GET /scenarios.
func (h *RunnerHandler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.catalog.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := history.Attach(r.Context(), h.history, summaries); err != nil {
		// the catalog is still useful without badges
		h.logger.Warn("failed to attach run history", "error", err)
	}
	if summaries == nil {
		summaries = []scenario.ScenarioSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetScenario handles GET /scenarios/{name}.
func (h *RunnerHandler) GetScenario(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalog.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateScenario handles POST /scenarios.
func (h *RunnerHandler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	var req scenario.ScenarioCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	summary, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// UpdateScenario handles PUT /scenarios/{name}.
func (h *RunnerHandler) UpdateScenario(w http.ResponseWriter, r *http.Request) {
	var req scenario.ScenarioCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ref := chi.URLParam(r, "name")
	current, err := h.catalog.Get(r.Context(), ref)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	summary, err := h.catalog.Update(r.Context(), ref, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.history != nil && current.Name != summary.Name {
		if err := h.history.Rename(r.Context(), current.Name, summary.Name); err != nil {
			h.logger.Warn("failed to carry run history across rename", "from", current.Name, "to", summary.Name, "error", err)
		}
	}
	updated := []scenario.ScenarioSummary{summary}
	if err := history.Attach(r.Context(), h.history, updated); err != nil {
		h.logger.Warn("failed to attach run history", "error", err)
	}
	writeJSON(w, http.StatusOK, updated[0])
}

// DeleteScenario handles DELETE /scenarios/{name}.
func (h *RunnerHandler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ScenarioHistory handles GET /scenarios/{name}/history?limit=N.
func (h *RunnerHandler) ScenarioHistory(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalog.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.history == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.history.List(r.Context(), detail.Name, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// RunScenario handles POST /run/{name}.
func (h *RunnerHandler) RunScenario(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.Run(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RunAll handles POST /run.
func (h *RunnerHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Generate handles POST /generate.
func (h *RunnerHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req scenario.GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	draft, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// ListPrompts handles GET /prompts.
func (h *RunnerHandler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	names, err := h.prompts.List()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, scenario.PromptList{Prompts: names})
}

// GetPrompt handles GET /prompts/{name}.
func (h *RunnerHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	content, err := h.prompts.Content(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario.PromptContent{Name: name, Content: content})
}

// GetPromptFields handles GET /prompt-fields/{name}.
func (h *RunnerHandler) GetPromptFields(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fields, err := h.prompts.Fields(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if fields == nil {
		fields = []string{}
	}
	writeJSON(w, http.StatusOK, scenario.PromptFields{Name: name, Fields: fields})
}

// Health handles GET /health.
func (h *RunnerHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := scenario.Health{Status: "ok"}
	if summaries, err := h.catalog.List(r.Context()); err == nil {
		out.ScenariosCount = len(summaries)
	} else {
		out.Status = "degraded"
		h.logger.Warn("health: list scenarios failed", "error", err)
	}
	if names, err := h.prompts.List(); err == nil {
		out.PromptsCount = len(names)
	} else {
		out.Status = "degraded"
		h.logger.Warn("health: list prompts failed", "error", err)
	}
	writeJSON(w, http.StatusOK, out)
}

// fail maps domain errors onto status codes and writes {"detail": ...}.
func (h *RunnerHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scenario.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Scenario not found")
	case errors.Is(err, prompts.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Prompt not found")
	case errors.Is(err, scenario.ErrConflict):
		writeDetail(w, http.StatusConflict, "Scenario already exists")
	case errors.Is(err, scenario.ErrInvalid):
		writeDetail(w, http.StatusUnprocessableEntity, strings.TrimPrefix(err.Error(), scenario.ErrInvalid.Error()+": "))
	case errors.Is(err, context.Canceled):
		writeDetail(w, http.StatusRequestTimeout, "request cancelled")
	default:
		h.logger.Error("runner request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
