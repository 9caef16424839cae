package scenario

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalid marks a scenario that cannot be persisted or run.
	ErrInvalid = errors.New("scenario: invalid")
	// ErrConflictingToolExpectation is returned when a turn expects both a
	// tool call and no tool call.
	ErrConflictingToolExpectation = fmt.Errorf("%w: expect_tool_call and expect_no_tool_call are mutually exclusive", ErrInvalid)
)

// SetExpectToolCall sets the expected tool call and clears
// expect_no_tool_call. A nil or unnamed expectation clears the field.
func (t *TurnSpec) SetExpectToolCall(exp *ToolCallExpectation) {
	if exp == nil || strings.TrimSpace(exp.Name) == "" {
		t.ExpectToolCall = nil
		return
	}
	t.ExpectToolCall = exp
	t.ExpectNoToolCall = false
}

// SetExpectNoToolCall sets expect_no_tool_call; true clears expect_tool_call.
func (t *TurnSpec) SetExpectNoToolCall(v bool) {
	t.ExpectNoToolCall = v
	if v {
		t.ExpectToolCall = nil
	}
}

// Validate reports turn-level authoring errors.
func (t TurnSpec) Validate() error {
	if t.ExpectToolCall != nil && t.ExpectNoToolCall {
		return ErrConflictingToolExpectation
	}
	if t.ExpectToolCall != nil && strings.TrimSpace(t.ExpectToolCall.Name) == "" {
		return fmt.Errorf("%w: expect_tool_call requires a tool name", ErrInvalid)
	}
	return nil
}

// Validate reports scenario-level authoring errors.
func (s *Scenario) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: scenario is required", ErrInvalid)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if Slugify(s.Name) == "" {
		return fmt.Errorf("%w: name %q has no usable characters", ErrInvalid, s.Name)
	}
	for i, turn := range s.Turns {
		if err := turn.Validate(); err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
	}
	return nil
}

// Normalize trims names, dedupes tags and drops empty list entries. It does
// not resolve conflicting tool expectations; Validate rejects those.
func (s *Scenario) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Description = strings.TrimSpace(s.Description)
	s.Tags = dedupe(s.Tags)
	for i := range s.Turns {
		turn := &s.Turns[i]
		turn.ExpectContains = compact(turn.ExpectContains)
		turn.ExpectNotContains = compact(turn.ExpectNotContains)
		turn.ExpectFieldNotAsked = compact(turn.ExpectFieldNotAsked)
		turn.ExpectFieldAsked = strings.TrimSpace(turn.ExpectFieldAsked)
		turn.ExpectMessageIntent = strings.TrimSpace(turn.ExpectMessageIntent)
		if turn.ExpectToolCall != nil && strings.TrimSpace(turn.ExpectToolCall.Name) == "" && len(turn.ExpectToolCall.Arguments) == 0 {
			turn.ExpectToolCall = nil
		}
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
