package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/realty-voice-platform/internal/history"
	"github.com/wolfman30/realty-voice-platform/internal/prompts"
	"github.com/wolfman30/realty-voice-platform/internal/scenario"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

type stubRunner struct {
	catalog scenario.Catalog
	runs    []string
}

func (s *stubRunner) Run(ctx context.Context, ref string) (scenario.ScenarioRunResult, error) {
	detail, err := s.catalog.Get(ctx, ref)
	if err != nil {
		return scenario.ScenarioRunResult{}, err
	}
	s.runs = append(s.runs, detail.Name)
	return scenario.ScenarioRunResult{Name: detail.Name, Status: scenario.StatusPassed, Turns: []scenario.TurnResult{}}, nil
}

func (s *stubRunner) RunAll(ctx context.Context) (scenario.RunAllResult, error) {
	return scenario.Summarize(nil, time.Millisecond), nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, req scenario.GenerateRequest) (scenario.ScenarioCreateRequest, error) {
	if strings.TrimSpace(req.Description) == "" {
		return scenario.ScenarioCreateRequest{}, scenario.ErrInvalid
	}
	return scenario.ScenarioCreateRequest{Name: "draft", Description: req.Description}, nil
}

type fixture struct {
	handler *RunnerHandler
	router  http.Handler
	history *history.MemoryStore
	runner  *stubRunner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := scenario.NewFileStore(t.TempDir(), logging.Discard())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	promptDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(promptDir, "purchase.md"), []byte("Ask for {{buyer_name}} then {{purchase_price}}."), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	hist := history.NewMemoryStore(0)
	runner := &stubRunner{catalog: store}
	h := NewRunnerHandler(RunnerDeps{
		Catalog:   store,
		Runner:    runner,
		Generator: stubGenerator{},
		Prompts:   prompts.NewLibrary(promptDir),
		History:   hist,
		Logger:    logging.Discard(),
	})

	r := chi.NewRouter()
	r.Get("/scenarios", h.ListScenarios)
	r.Post("/scenarios", h.CreateScenario)
	r.Get("/scenarios/{name}", h.GetScenario)
	r.Put("/scenarios/{name}", h.UpdateScenario)
	r.Delete("/scenarios/{name}", h.DeleteScenario)
	r.Get("/scenarios/{name}/history", h.ScenarioHistory)
	r.Post("/run/{name}", h.RunScenario)
	r.Post("/run", h.RunAll)
	r.Post("/generate", h.Generate)
	r.Get("/prompts", h.ListPrompts)
	r.Get("/prompts/{name}", h.GetPrompt)
	r.Get("/prompt-fields/{name}", h.GetPromptFields)
	r.Get("/health", h.Health)
	return &fixture{handler: h, router: r, history: hist, runner: runner}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body["detail"]
}

const newOfferJSON = `{"name":"New Offer","description":"buyer starts an offer","tags":["new"],
"turns":[{"user_input":"I want to make an offer","expect_tool_call":"get_prompt"}]}`

func TestScenarioLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/scenarios", newOfferJSON)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created scenario.ScenarioSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if created.FilePath != "new-offer.yaml" || created.TurnCount != 1 {
		t.Fatalf("unexpected summary %+v", created)
	}

	if rec := f.do(t, http.MethodPost, "/scenarios", newOfferJSON); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create: expected 409, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/scenarios/new-offer.yaml", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var detail scenario.ScenarioDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.Turns[0].ExpectToolCall == nil || detail.Turns[0].ExpectToolCall.Name != "get_prompt" {
		t.Fatalf("expected tool expectation to round trip, got %+v", detail.Turns[0])
	}

	updated := strings.Replace(newOfferJSON, "buyer starts an offer", "buyer revises an offer", 1)
	if rec := f.do(t, http.MethodPut, "/scenarios/new-offer.yaml", updated); rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if err := f.history.Record(context.Background(), scenario.ScenarioRunResult{Name: "New Offer", RunID: "r1", Status: scenario.StatusFailed, DurationMS: 12}, time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}
	rec = f.do(t, http.MethodGet, "/scenarios", "")
	var list []scenario.ScenarioSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].LastResult == nil || list[0].LastResult.Status != scenario.StatusFailed {
		t.Fatalf("expected last result badge, got %+v", list)
	}

	rec = f.do(t, http.MethodGet, "/scenarios/new-offer.yaml/history?limit=5", "")
	var entries []history.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil || len(entries) != 1 {
		t.Fatalf("expected one history entry, got %s", rec.Body.String())
	}

	if rec := f.do(t, http.MethodDelete, "/scenarios/new-offer.yaml", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodDelete, "/scenarios/new-offer.yaml", "")
	if rec.Code != http.StatusNotFound || detailOf(t, rec) != "Scenario not found" {
		t.Fatalf("second delete: expected 404 Scenario not found, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRenameKeepsLastResult(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodPost, "/scenarios", newOfferJSON); rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	if err := f.history.Record(context.Background(), scenario.ScenarioRunResult{Name: "New Offer", RunID: "r1", Status: scenario.StatusFailed, DurationMS: 9}, time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}

	renamed := strings.Replace(newOfferJSON, `"New Offer"`, `"Revised Offer"`, 1)
	rec := f.do(t, http.MethodPut, "/scenarios/new-offer.yaml", renamed)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var summary scenario.ScenarioSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.FilePath != "revised-offer.yaml" || summary.LastResult == nil || summary.LastResult.Status != scenario.StatusFailed {
		t.Fatalf("expected renamed scenario with its last result, got %+v", summary)
	}

	rec = f.do(t, http.MethodGet, "/scenarios/revised-offer.yaml/history", "")
	var entries []history.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil || len(entries) != 1 {
		t.Fatalf("expected history to follow the rename, got %s", rec.Body.String())
	}
}

func TestCreateRejectsInvalidScenario(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/scenarios", `{"name":"","turns":[]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if got := detailOf(t, rec); got != "name is required" {
		t.Fatalf("unexpected detail %q", got)
	}

	rec = f.do(t, http.MethodPost, "/scenarios", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRunEndpoints(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/scenarios", newOfferJSON)

	rec := f.do(t, http.MethodPost, "/run/New%20Offer", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("run: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.runner.runs) != 1 || f.runner.runs[0] != "New Offer" {
		t.Fatalf("expected run by name, got %v", f.runner.runs)
	}

	rec = f.do(t, http.MethodPost, "/run/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("run missing: expected 404, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/run", "")
	var all scenario.RunAllResult
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode run all: %v", err)
	}
	if all.Results == nil {
		t.Fatalf("expected non-nil results array")
	}
}

func TestGenerateEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/generate", `{"description":"buyer counters","mock_prompt_file":"purchase.md"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/generate", `{"description":" "}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank description, got %d", rec.Code)
	}
}

func TestPromptEndpointsAndHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/prompts", "")
	var list scenario.PromptList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list.Prompts) != 1 {
		t.Fatalf("unexpected prompt list %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/prompt-fields/purchase", "")
	var fields scenario.PromptFields
	if err := json.Unmarshal(rec.Body.Bytes(), &fields); err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if strings.Join(fields.Fields, ",") != "buyer_name,purchase_price" {
		t.Fatalf("unexpected fields %v", fields.Fields)
	}

	rec = f.do(t, http.MethodGet, "/prompts/nope", "")
	if rec.Code != http.StatusNotFound || detailOf(t, rec) != "Prompt not found" {
		t.Fatalf("expected prompt 404, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/health", "")
	var health scenario.Health
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.PromptsCount != 1 || health.ScenariosCount != 0 {
		t.Fatalf("unexpected health %+v", health)
	}
}
