// Package history records scenario run outcomes so the catalog can show the
// most recent result of every scenario.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
)

// Entry is one recorded run.
type Entry struct {
	RunID      string                     `json:"run_id"`
	Scenario   string                     `json:"scenario"`
	Status     string                     `json:"status"`
	DurationMS int64                      `json:"duration_ms"`
	Error      string                     `json:"error,omitempty"`
	RanAt      time.Time                  `json:"ran_at"`
	Result     scenario.ScenarioRunResult `json:"result"`
}

// Store persists runs. It satisfies scenario.Recorder.
type Store interface {
	Record(ctx context.Context, result scenario.ScenarioRunResult, ranAt time.Time) error
	// Latest returns the newest run per scenario name; names without runs
	// are absent from the map.
	Latest(ctx context.Context, names []string) (map[string]scenario.LastResult, error)
	// List returns up to limit runs of one scenario, newest first.
	List(ctx context.Context, name string, limit int) ([]Entry, error)
	// Rename moves the runs recorded under from to the scenario named to.
	Rename(ctx context.Context, from, to string) error
}

// Attach fills LastResult on each summary.
func Attach(ctx context.Context, store Store, summaries []scenario.ScenarioSummary) error {
	if store == nil || len(summaries) == 0 {
		return nil
	}
	names := make([]string, len(summaries))
	for i, s := range summaries {
		names[i] = s.Name
	}
	latest, err := store.Latest(ctx, names)
	if err != nil {
		return err
	}
	for i := range summaries {
		if lr, ok := latest[summaries[i].Name]; ok {
			lr := lr
			summaries[i].LastResult = &lr
		}
	}
	return nil
}

// MemoryStore keeps runs in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
	limit   int
}

// NewMemoryStore keeps at most perScenario runs per scenario (default 20).
func NewMemoryStore(perScenario int) *MemoryStore {
	if perScenario <= 0 {
		perScenario = 20
	}
	return &MemoryStore{entries: make(map[string][]Entry), limit: perScenario}
}

func (m *MemoryStore) Record(_ context.Context, result scenario.ScenarioRunResult, ranAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := append(m.entries[result.Name], entryFor(result, ranAt))
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].RanAt.After(runs[j].RanAt) })
	if len(runs) > m.limit {
		runs = runs[:m.limit]
	}
	m.entries[result.Name] = runs
	return nil
}

func (m *MemoryStore) Latest(_ context.Context, names []string) (map[string]scenario.LastResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]scenario.LastResult, len(names))
	for _, name := range names {
		runs := m.entries[name]
		if len(runs) == 0 {
			continue
		}
		out[name] = lastResult(runs[0])
	}
	return out, nil
}

func (m *MemoryStore) List(_ context.Context, name string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := m.entries[name]
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return append([]Entry(nil), runs...), nil
}

func (m *MemoryStore) Rename(_ context.Context, from, to string) error {
	if from == to {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := m.entries[from]
	if len(moved) == 0 {
		return nil
	}
	delete(m.entries, from)
	runs := append([]Entry(nil), m.entries[to]...)
	for _, e := range moved {
		e.Scenario = to
		e.Result.Name = to
		runs = append(runs, e)
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].RanAt.After(runs[j].RanAt) })
	if len(runs) > m.limit {
		runs = runs[:m.limit]
	}
	m.entries[to] = runs
	return nil
}

func entryFor(result scenario.ScenarioRunResult, ranAt time.Time) Entry {
	return Entry{
		RunID:      result.RunID,
		Scenario:   result.Name,
		Status:     result.Status,
		DurationMS: result.DurationMS,
		Error:      result.Error,
		RanAt:      ranAt.UTC(),
		Result:     result,
	}
}

func lastResult(e Entry) scenario.LastResult {
	return scenario.LastResult{Status: e.Status, DurationMS: e.DurationMS, RanAt: e.RanAt}
}
