package extraction

import "time"

// Phase is the resolver's position in the two-phase protocol.
type Phase int

const (
	// PhaseIdle means there is no call id; nothing is fetched.
	PhaseIdle Phase = iota
	// PhaseDiscovering lists records by call id until one matches exactly.
	PhaseDiscovering
	// PhasePolling fetches the resolved document directly.
	PhasePolling
)

func (p Phase) String() string {
	switch p {
	case PhaseDiscovering:
		return "discovering"
	case PhasePolling:
		return "polling"
	default:
		return "idle"
	}
}

// State is the resolver state for one call. The zero value is Idle.
// Transitions are pure: each returns a new State.
type State struct {
	phase      Phase
	callID     string
	documentID string
}

// Phase returns the current phase.
func (s State) Phase() Phase { return s.phase }

// CallID returns the call the state belongs to.
func (s State) CallID() string { return s.callID }

// DocumentID returns the resolved document, empty unless polling.
func (s State) DocumentID() string { return s.documentID }

// Discover starts phase 1 for callID. An empty call id yields Idle.
func Discover(callID string) State {
	if callID == "" {
		return State{}
	}
	return State{phase: PhaseDiscovering, callID: callID}
}

// Resolve moves a discovering state to polling. The move happens once per
// call: a state already polling, or belonging to another call, is returned
// unchanged.
func (s State) Resolve(callID, documentID string) State {
	if s.phase != PhaseDiscovering || s.callID != callID || documentID == "" {
		return s
	}
	return State{phase: PhasePolling, callID: callID, documentID: documentID}
}

// Reconcile aligns the state with the active call id. A state for another call
// is discarded and phase 1 restarts for the new call.
func (s State) Reconcile(callID string) State {
	if callID == "" {
		return State{}
	}
	if s.callID != callID {
		return Discover(callID)
	}
	return s
}

// Resolution records the document discovered for a call.
type Resolution struct {
	CallID     string    `json:"call_id"`
	DocumentID string    `json:"document_id"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// StateFor derives the state for callID from a stored resolution. The
// resolution is trusted only when it was produced for the same call id.
func StateFor(callID string, res *Resolution) State {
	st := Discover(callID)
	if res == nil || res.CallID != callID {
		return st
	}
	return st.Resolve(callID, res.DocumentID)
}
