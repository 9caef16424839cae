package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Check types reported in TurnCheckResult.Type.
const (
	CheckToolCall      = "tool_call"
	CheckNoToolCall    = "no_tool_call"
	CheckMessageIntent = "message_intent"
	CheckContains      = "contains"
	CheckNotContains   = "not_contains"
	CheckFieldAsked    = "field_asked"
	CheckFieldNotAsked = "field_not_asked"
)

// Observation is what the agent did in one turn.
type Observation struct {
	Reply     string
	ToolCalls []ToolCall
}

// Evaluate runs every check configured on turn against obs. Omitted
// expectations produce no result. A nil judge falls back to KeywordJudge.
func Evaluate(ctx context.Context, turn TurnSpec, obs Observation, judge IntentJudge) []TurnCheckResult {
	var results []TurnCheckResult

	if turn.ExpectToolCall != nil {
		results = append(results, evalToolCall(*turn.ExpectToolCall, obs.ToolCalls))
	}
	if turn.ExpectNoToolCall {
		results = append(results, evalNoToolCall(obs.ToolCalls))
	}

	if turn.ExpectMessageIntent != "" {
		if judge == nil {
			judge = KeywordJudge{}
		}
		results = append(results, evalIntent(ctx, judge, turn.ExpectMessageIntent, obs.Reply))
	}

	for _, s := range turn.ExpectContains {
		results = append(results, evalContains(s, obs.Reply))
	}
	for _, s := range turn.ExpectNotContains {
		results = append(results, evalNotContains(s, obs.Reply))
	}

	if turn.ExpectFieldAsked != "" || len(turn.ExpectFieldNotAsked) > 0 {
		solicited := SolicitedFields(obs)
		if turn.ExpectFieldAsked != "" {
			results = append(results, evalFieldAsked(turn.ExpectFieldAsked, solicited, obs.Reply))
		}
		for _, field := range turn.ExpectFieldNotAsked {
			results = append(results, evalFieldNotAsked(field, solicited, obs.Reply))
		}
	}

	return results
}

// HasFailures reports whether any check failed.
func HasFailures(checks []TurnCheckResult) bool {
	for _, c := range checks {
		if !c.Passed {
			return true
		}
	}
	return false
}

func evalToolCall(exp ToolCallExpectation, calls []ToolCall) TurnCheckResult {
	result := TurnCheckResult{
		Type:     CheckToolCall,
		Expected: describeExpectation(exp),
		Actual:   describeCalls(calls),
	}

	var named []ToolCall
	for _, call := range calls {
		if call.Name == exp.Name {
			named = append(named, call)
		}
	}
	if len(named) == 0 {
		if len(calls) == 0 {
			result.Reason = fmt.Sprintf("expected tool %q to be called, but no tool was called", exp.Name)
		} else {
			result.Reason = fmt.Sprintf("expected tool %q to be called, got %s", exp.Name, result.Actual)
		}
		return result
	}

	var mismatch string
	for _, call := range named {
		if m := argumentMismatch(exp.Arguments, call.Arguments); m == "" {
			result.Passed = true
			return result
		} else if mismatch == "" {
			mismatch = m
		}
	}
	result.Reason = fmt.Sprintf("tool %q was called with different arguments: %s", exp.Name, mismatch)
	return result
}

// argumentMismatch returns "" when every expected argument matches the
// actual call. Arguments not named in expected are ignored.
func argumentMismatch(expected, actual map[string]any) string {
	for _, key := range sortedKeys(expected) {
		got, ok := actual[key]
		if !ok {
			return fmt.Sprintf("argument %q missing", key)
		}
		if !valuesMatch(expected[key], got) {
			return fmt.Sprintf("argument %q expected %s, got %s", key, jsonString(expected[key]), jsonString(got))
		}
	}
	return ""
}

// valuesMatch compares argument values after a JSON round trip so that YAML
// ints match JSON floats. Nested objects are matched as subsets too. Strings
// compare case-insensitively.
func valuesMatch(expected, actual any) bool {
	e, a := normalizeJSON(expected), normalizeJSON(actual)
	switch ev := e.(type) {
	case map[string]any:
		av, ok := a.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range ev {
			if !valuesMatch(v, av[k]) {
				return false
			}
		}
		return true
	case string:
		as, ok := a.(string)
		return ok && strings.EqualFold(strings.TrimSpace(ev), strings.TrimSpace(as))
	default:
		return reflect.DeepEqual(e, a)
	}
}

func normalizeJSON(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func evalNoToolCall(calls []ToolCall) TurnCheckResult {
	result := TurnCheckResult{
		Type:     CheckNoToolCall,
		Expected: "no tool calls",
		Actual:   describeCalls(calls),
		Passed:   len(calls) == 0,
	}
	if !result.Passed {
		result.Reason = fmt.Sprintf("expected no tool calls, got %s", result.Actual)
	}
	return result
}

func evalIntent(ctx context.Context, judge IntentJudge, intent, reply string) TurnCheckResult {
	result := TurnCheckResult{
		Type:     CheckMessageIntent,
		Expected: intent,
		Actual:   reply,
	}
	verdict, err := judge.Judge(ctx, intent, reply)
	if err != nil {
		result.Reason = fmt.Sprintf("could not evaluate intent: %v", err)
		return result
	}
	result.Passed = verdict.Pass
	if !verdict.Pass {
		result.Reason = verdict.Reason
		if result.Reason == "" {
			result.Reason = "the reply does not convey the expected intent"
		}
	}
	return result
}

func evalContains(needle, reply string) TurnCheckResult {
	result := TurnCheckResult{
		Type:     CheckContains,
		Expected: needle,
		Actual:   reply,
		Passed:   containsFold(reply, needle),
	}
	if !result.Passed {
		result.Reason = fmt.Sprintf("reply does not contain %q", needle)
	}
	return result
}

func evalNotContains(needle, reply string) TurnCheckResult {
	result := TurnCheckResult{
		Type:     CheckNotContains,
		Expected: needle,
		Actual:   reply,
		Passed:   !containsFold(reply, needle),
	}
	if !result.Passed {
		result.Reason = fmt.Sprintf("reply contains %q but should not", needle)
	}
	return result
}

func evalFieldAsked(field string, solicited []string, reply string) TurnCheckResult {
	result := TurnCheckResult{
		Type:     CheckFieldAsked,
		Expected: field,
		Actual:   strings.Join(solicited, ", "),
		Passed:   fieldSolicited(field, solicited, reply),
	}
	switch {
	case !result.Passed && len(solicited) == 0:
		result.Reason = fmt.Sprintf("expected the agent to ask for %q, but it did not ask for any field", field)
	case !result.Passed:
		result.Reason = fmt.Sprintf("expected the agent to ask for %q, but it asked for %s", field, result.Actual)
	default:
		// asking alongside other fields still passes; the extras are noted
		if others := otherFields(field, solicited); len(others) > 0 {
			result.Reason = fmt.Sprintf("asked for %q together with %s", field, strings.Join(others, ", "))
		}
	}
	return result
}

func otherFields(field string, solicited []string) []string {
	want := NormalizeField(field)
	var out []string
	for _, s := range solicited {
		if NormalizeField(s) != want {
			out = append(out, s)
		}
	}
	return out
}

func evalFieldNotAsked(field string, solicited []string, reply string) TurnCheckResult {
	result := TurnCheckResult{
		Type:     CheckFieldNotAsked,
		Expected: field,
		Actual:   strings.Join(solicited, ", "),
		Passed:   !fieldSolicited(field, solicited, reply),
	}
	if !result.Passed {
		result.Reason = fmt.Sprintf("the agent asked for %q, which should not be asked this turn", field)
	}
	return result
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func describeExpectation(exp ToolCallExpectation) string {
	if len(exp.Arguments) == 0 {
		return exp.Name
	}
	return exp.Name + " " + jsonString(exp.Arguments)
}

func describeCalls(calls []ToolCall) string {
	if len(calls) == 0 {
		return ""
	}
	parts := make([]string, 0, len(calls))
	for _, c := range calls {
		if len(c.Arguments) == 0 {
			parts = append(parts, c.Name)
			continue
		}
		parts = append(parts, c.Name+" "+jsonString(c.Arguments))
	}
	return strings.Join(parts, "; ")
}

func jsonString(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
