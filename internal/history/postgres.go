package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps runs in the scenario_runs table.
type PostgresStore struct {
	db querier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("history: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQuerier(db querier) *PostgresStore {
	if db == nil {
		panic("history: querier required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, result scenario.ScenarioRunResult, ranAt time.Time) error {
	runID, err := uuid.Parse(result.RunID)
	if err != nil {
		runID = uuid.New()
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("history: encode result: %w", err)
	}
	query := `
		INSERT INTO scenario_runs (run_id, scenario_name, status, duration_ms, error, result, ran_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query, runID, result.Name, result.Status, result.DurationMS, result.Error, payload, ranAt.UTC()); err != nil {
		return fmt.Errorf("history: insert run: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, names []string) (map[string]scenario.LastResult, error) {
	out := make(map[string]scenario.LastResult, len(names))
	if len(names) == 0 {
		return out, nil
	}
	query := `
		SELECT DISTINCT ON (scenario_name) scenario_name, status, duration_ms, ran_at
		FROM scenario_runs
		WHERE scenario_name = ANY($1)
		ORDER BY scenario_name, ran_at DESC
	`
	rows, err := s.db.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("history: query latest: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name string
			lr   scenario.LastResult
		)
		if err := rows.Scan(&name, &lr.Status, &lr.DurationMS, &lr.RanAt); err != nil {
			return nil, fmt.Errorf("history: scan latest: %w", err)
		}
		out[name] = lr
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate latest: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context, name string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT run_id, scenario_name, status, duration_ms, error, ran_at, result
		FROM scenario_runs
		WHERE scenario_name = $1
		ORDER BY ran_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			runID   uuid.UUID
			payload []byte
		)
		if err := rows.Scan(&runID, &e.Scenario, &e.Status, &e.DurationMS, &e.Error, &e.RanAt, &payload); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		e.RunID = runID.String()
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Result); err != nil {
				return nil, fmt.Errorf("history: decode run %s: %w", e.RunID, err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Rename(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	query := `
		UPDATE scenario_runs
		SET scenario_name = $2, result = jsonb_set(result, '{name}', to_jsonb($2::text))
		WHERE scenario_name = $1
	`
	if _, err := s.db.Exec(ctx, query, from, to); err != nil {
		return fmt.Errorf("history: rename %s: %w", from, err)
	}
	return nil
}
