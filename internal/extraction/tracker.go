package extraction

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// DefaultPollInterval applies when Options.PollInterval is not positive.
const DefaultPollInterval = time.Second

// Options configure a Tracker. Polling runs only while Enabled is true and a
// CallID is present.
type Options struct {
	CallID       string
	UserID       string
	PollInterval time.Duration
	Enabled      bool
}

// Update is published after every poll of the active call.
type Update struct {
	CallID     string
	Phase      Phase
	DocumentID string
	Record     *Record
	Fields     []Field
	Err        error
	At         time.Time
}

// Tracker follows one live voice session at a time, polling on a fixed
// interval. Changing the call id cancels the previous loop, invalidates the old
// call's cached results and restarts discovery for the new call.
type Tracker struct {
	resolver *Resolver
	logger   *logging.Logger
	parent   context.Context

	mu      sync.Mutex
	opts    Options
	gen     uint64
	cancel  context.CancelFunc
	latest  Update
	updates chan Update
	closed  bool
	wg      sync.WaitGroup
}

// NewTracker creates an idle tracker. Loops stop when ctx is cancelled.
func NewTracker(ctx context.Context, resolver *Resolver, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Tracker{
		resolver: resolver,
		logger:   logger,
		parent:   ctx,
		updates:  make(chan Update, 1),
	}
}

// Updates delivers the latest poll results. Slow readers only miss
// intermediate updates, never the most recent one.
func (t *Tracker) Updates() <-chan Update {
	return t.updates
}

// Latest returns the most recent update for the active call.
func (t *Tracker) Latest() Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

// Options returns the active configuration.
func (t *Tracker) Options() Options {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts
}

// Configure applies new options. Reapplying the same options is a no-op.
func (t *Tracker) Configure(opts Options) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	prev := t.opts
	running := t.cancel != nil
	if running && prev == opts {
		t.mu.Unlock()
		return
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	gen := t.gen
	t.opts = opts
	callChanged := prev.CallID != opts.CallID
	if callChanged {
		t.latest = Update{}
	}
	t.mu.Unlock()

	if callChanged && prev.CallID != "" {
		t.resolver.Reset(prev.CallID)
	}

	if !opts.Enabled || opts.CallID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.gen != gen {
		return
	}
	ctx, cancel := context.WithCancel(t.parent)
	t.cancel = cancel
	t.wg.Add(1)
	go t.run(ctx, opts, gen)
}

// Stop halts polling but keeps the current call id and latest update.
func (t *Tracker) Stop() {
	opts := t.Options()
	opts.Enabled = false
	t.Configure(opts)
}

// Close stops polling and closes the updates channel.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	close(t.updates)
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) run(ctx context.Context, opts Options, gen uint64) {
	defer t.wg.Done()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	t.poll(ctx, opts, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx, opts, gen)
		}
	}
}

func (t *Tracker) poll(ctx context.Context, opts Options, gen uint64) {
	res, err := t.resolver.Query(ctx, opts.CallID, opts.UserID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		t.logger.Warn("extraction poll failed", "call_id", opts.CallID, "phase", res.State.Phase().String(), "error", err)
	}
	u := Update{
		CallID:     opts.CallID,
		Phase:      res.State.Phase(),
		DocumentID: res.State.DocumentID(),
		Record:     res.Record,
		Fields:     res.Record.Fields(),
		Err:        err,
		At:         time.Now(),
	}
	t.publish(gen, u)
}

func (t *Tracker) publish(gen uint64, u Update) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || gen != t.gen || u.CallID != t.opts.CallID {
		return
	}
	// keep the last good record visible while an error is reported
	if u.Record == nil && t.latest.CallID == u.CallID && t.latest.Record != nil {
		if u.Err != nil {
			u.Record = t.latest.Record
			u.Fields = t.latest.Fields
			u.DocumentID = t.latest.DocumentID
		}
	}
	t.latest = u
	select {
	case t.updates <- u:
	default:
		select {
		case <-t.updates:
		default:
		}
		t.updates <- u
	}
}
