package extraction

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/realty-voice-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

var resolverTracer = otel.Tracer("realty.internal.extraction.resolver")

const queryScope = "extraction"

// Source is the read side of the extraction endpoints.
type Source interface {
	ListByCall(ctx context.Context, callID, userID string) ([]Record, error)
	Get(ctx context.Context, documentID string) (*Record, error)
}

// Result is the outcome of one query. Record is nil while phase 1 has not yet
// found this call's record.
type Result struct {
	State  State
	Record *Record
}

// Resolver runs the two-phase extraction protocol: discover the document for a
// call id, then fetch that document directly.
type Resolver struct {
	source  Source
	cache   *QueryCache
	store   ResolutionStore
	metrics *metrics.ExtractionMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithQueryCache shares a query cache between resolvers.
func WithQueryCache(cache *QueryCache) ResolverOption {
	return func(r *Resolver) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithResolutionStore overrides the in-memory resolution store.
func WithResolutionStore(store ResolutionStore) ResolverOption {
	return func(r *Resolver) {
		if store != nil {
			r.store = store
		}
	}
}

// WithMetrics records poll metrics.
func WithMetrics(m *metrics.ExtractionMetrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver creates a resolver over source.
func NewResolver(source Source, logger *logging.Logger, opts ...ResolverOption) *Resolver {
	if source == nil {
		panic("extraction: source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Resolver{
		source: source,
		cache:  NewQueryCache(0),
		store:  NewMemoryResolutionStore(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state for callID without touching the network.
func (r *Resolver) State(ctx context.Context, callID string) (State, error) {
	if callID == "" {
		return State{}, nil
	}
	res, err := r.store.Get(ctx, callID)
	if err != nil {
		return Discover(callID), err
	}
	return StateFor(callID, res), nil
}

// Query performs one poll for callID. With no call id it returns an idle
// result without issuing a request. In phase 1 a missing exact match is not an
// error: the result simply carries no record.
func (r *Resolver) Query(ctx context.Context, callID, userID string) (Result, error) {
	if callID == "" {
		return Result{}, nil
	}
	state, err := r.State(ctx, callID)
	if err != nil {
		return Result{State: state}, err
	}

	ctx, span := resolverTracer.Start(ctx, "extraction.query")
	defer span.End()
	span.SetAttributes(
		attribute.String("realty.call_id", callID),
		attribute.String("realty.phase", state.Phase().String()),
	)

	start := r.now()
	var result Result
	if state.Phase() == PhasePolling {
		result, err = r.poll(ctx, state)
	} else {
		result, err = r.discover(ctx, state, userID)
	}

	outcome := "data"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case result.Record == nil:
		outcome = "empty"
	}
	r.metrics.ObservePoll(state.Phase().String(), outcome, r.now().Sub(start).Seconds())
	return result, err
}

func (r *Resolver) discover(ctx context.Context, state State, userID string) (Result, error) {
	callID := state.CallID()
	key := QueryKey{Scope: queryScope, CallID: callID, UserID: userID, Phase: PhaseDiscovering}
	v, err := r.cache.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return r.source.ListByCall(ctx, callID, userID)
	})
	if err != nil {
		return Result{State: state}, err
	}
	records, _ := v.([]Record)

	match, ok := MatchCall(records, callID)
	if !ok {
		r.logger.Debug("extraction not yet available", "call_id", callID, "records", len(records))
		return Result{State: state}, nil
	}

	winner, err := r.store.SetOnce(ctx, Resolution{
		CallID:     callID,
		DocumentID: match.DocumentID,
		ResolvedAt: r.now().UTC(),
	})
	if err != nil {
		return Result{State: state}, fmt.Errorf("extraction: store resolution: %w", err)
	}
	next := state.Resolve(callID, winner.DocumentID)
	if winner.DocumentID != match.DocumentID {
		// Another watcher resolved this call first; its document wins and the
		// next poll fetches it.
		return Result{State: next}, nil
	}

	r.metrics.ObserveResolution()
	r.logger.Info("extraction document resolved", "call_id", callID, "document_id", winner.DocumentID)
	return Result{State: next, Record: match}, nil
}

func (r *Resolver) poll(ctx context.Context, state State) (Result, error) {
	key := QueryKey{Scope: queryScope, CallID: state.CallID(), Phase: PhasePolling, DocumentID: state.DocumentID()}
	v, err := r.cache.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return r.source.Get(ctx, state.DocumentID())
	})
	if err != nil {
		return Result{State: state}, err
	}
	rec, _ := v.(*Record)
	return Result{State: state, Record: rec}, nil
}

// Reset drops the cached queries for callID, including results of requests
// still in flight. The stored resolution is kept: it is tagged with its call
// id and may be shared with other watchers of the same call.
func (r *Resolver) Reset(callID string) {
	if callID == "" {
		return
	}
	removed := r.cache.InvalidateCall(callID)
	r.metrics.ObserveInvalidation()
	r.logger.Debug("extraction cache invalidated", "call_id", callID, "entries", removed)
}

// Cached returns the most recent record cached for callID, if any.
func (r *Resolver) Cached(ctx context.Context, callID, userID string) (*Record, bool) {
	state, err := r.State(ctx, callID)
	if err != nil || state.Phase() == PhaseIdle {
		return nil, false
	}
	if state.Phase() == PhasePolling {
		v, ok := r.cache.Get(QueryKey{Scope: queryScope, CallID: callID, Phase: PhasePolling, DocumentID: state.DocumentID()})
		if ok {
			rec, _ := v.(*Record)
			return rec, rec != nil
		}
	}
	v, ok := r.cache.Get(QueryKey{Scope: queryScope, CallID: callID, UserID: userID, Phase: PhaseDiscovering})
	if !ok {
		return nil, false
	}
	records, _ := v.([]Record)
	return MatchCall(records, callID)
}
