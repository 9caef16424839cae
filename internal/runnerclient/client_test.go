package runnerclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client(), logging.Discard())
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail", http.StatusNotFound, `{"detail":"Scenario not found"}`, "Scenario not found"},
		{"empty object", http.StatusInternalServerError, `{}`, "Request failed: 500"},
		{"message", http.StatusBadRequest, `{"message":"bad input"}`, "bad input"},
		{"detail wins", http.StatusConflict, `{"detail":"exists","message":"ignored"}`, "exists"},
		{"not json", http.StatusBadGateway, `<html>oops</html>`, "Request failed: 502"},
		{"null detail", http.StatusBadRequest, `{"detail":null,"message":"fallback"}`, "fallback"},
		{"structured detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body"]}]}`, `[{"loc":["body"]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, respond(tt.status, tt.body))
			_, err := c.GetScenario(context.Background(), "missing")
			require.Error(t, err)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestRequestsHitContractRoutes(t *testing.T) {
	type hit struct{ method, path string }
	var hits []hit
	mux := http.NewServeMux()
	record := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, hit{r.Method, r.URL.EscapedPath()})
			if body == "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			respond(http.StatusOK, body)(w, r)
		}
	}
	mux.HandleFunc("GET /scenarios", record(`[{"name":"a","turn_count":1,"file_path":"a.yaml"}]`))
	mux.HandleFunc("GET /scenarios/{name}", record(`{"name":"a","turns":[],"file_path":"a.yaml"}`))
	mux.HandleFunc("POST /scenarios", record(`{"name":"a","file_path":"a.yaml"}`))
	mux.HandleFunc("PUT /scenarios/{name}", record(`{"name":"a","file_path":"a.yaml"}`))
	mux.HandleFunc("DELETE /scenarios/{name}", record(""))
	mux.HandleFunc("POST /run/{name}", record(`{"name":"a","status":"passed","turns":[]}`))
	mux.HandleFunc("POST /run", record(`{"total":0,"passed":0,"failed":0,"errors":0,"results":[]}`))
	mux.HandleFunc("POST /generate", record(`{"name":"draft","turns":[{"user_input":"hi","expect_tool_call":"get_prompt"}]}`))
	mux.HandleFunc("GET /prompts", record(`{"prompts":["purchase"]}`))
	mux.HandleFunc("GET /prompts/{name}", record(`{"name":"purchase","content":"x"}`))
	mux.HandleFunc("GET /prompt-fields/{name}", record(`{"name":"purchase","fields":["buyer_name"]}`))
	mux.HandleFunc("GET /health", record(`{"status":"ok","scenarios_count":1,"prompts_count":1}`))

	c := newTestClient(t, mux)
	ctx := context.Background()

	list, err := c.ListScenarios(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a.yaml", list[0].FilePath)

	_, err = c.GetScenario(ctx, "a.yaml")
	require.NoError(t, err)
	created, err := c.CreateScenario(ctx, scenario.ScenarioCreateRequest{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a.yaml", created.FilePath)
	_, err = c.UpdateScenario(ctx, "a.yaml", scenario.ScenarioCreateRequest{Name: "a"})
	require.NoError(t, err)
	require.NoError(t, c.DeleteScenario(ctx, "a.yaml"))
	run, err := c.RunScenario(ctx, "a.yaml")
	require.NoError(t, err)
	assert.Equal(t, scenario.StatusPassed, run.Status)
	all, err := c.RunAllScenarios(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all.Results)
	draft, err := c.GenerateScenario(ctx, "buyer gives a name", "")
	require.NoError(t, err)
	require.NotNil(t, draft.Turns[0].ExpectToolCall)
	assert.Equal(t, "get_prompt", draft.Turns[0].ExpectToolCall.Name)
	prompts, err := c.ListPrompts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"purchase"}, prompts.Prompts)
	_, err = c.GetPromptContent(ctx, "purchase")
	require.NoError(t, err)
	fields, err := c.GetPromptFields(ctx, "purchase")
	require.NoError(t, err)
	assert.Equal(t, []string{"buyer_name"}, fields.Fields)
	health, err := c.CheckHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, health.ScenariosCount)

	assert.Len(t, hits, 12)
	assert.Equal(t, hit{http.MethodPost, "/run/a.yaml"}, hits[5])
}

func TestGenerateSendsDescription(t *testing.T) {
	var got scenario.GenerateRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		respond(http.StatusOK, `{"name":"x","turns":[]}`)(w, r)
	}))
	_, err := c.GenerateScenario(context.Background(), "counter offer", "purchase.md")
	require.NoError(t, err)
	assert.Equal(t, "counter offer", got.Description)
	assert.Equal(t, "purchase.md", got.MockPromptFile)
}

func TestNoRetryOnFailure(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		respond(http.StatusServiceUnavailable, `{"detail":"busy"}`)(w, r)
	}))
	_, err := c.RunAllScenarios(context.Background())
	require.EqualError(t, err, "busy")
	assert.Equal(t, 1, calls)
}
