package voiceagent

import (
	"encoding/json"
	"strings"

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
)

// ToolCallMarker prefixes a tool invocation line in model output:
//
//	TOOL_CALL {"name": "extract_fields", "arguments": {"text": "..."}}
const ToolCallMarker = "TOOL_CALL"

// ParseToolCalls splits model output into tool calls and the spoken reply.
// Marker lines whose JSON does not parse are kept as reply text.
func ParseToolCalls(text string) ([]scenario.ToolCall, string) {
	var calls []scenario.ToolCall
	var reply []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, ToolCallMarker) {
			reply = append(reply, line)
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(trimmed, ToolCallMarker))
		payload = strings.TrimSpace(strings.TrimPrefix(payload, ":"))
		var call scenario.ToolCall
		if err := json.Unmarshal([]byte(payload), &call); err != nil || call.Name == "" {
			reply = append(reply, line)
			continue
		}
		if call.Arguments == nil {
			call.Arguments = map[string]any{}
		}
		calls = append(calls, call)
	}
	return calls, strings.TrimSpace(strings.Join(reply, "\n"))
}

func formatToolCall(call scenario.ToolCall) string {
	raw, _ := json.Marshal(call)
	return ToolCallMarker + " " + string(raw)
}
