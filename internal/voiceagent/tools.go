// Package voiceagent simulates the real-estate voice agent under test: an
// LLM-driven or scripted conversation partner with mocked backend tools.
package voiceagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
)

// Tool names exposed to the agent.
const (
	ToolGetPrompt     = "get_prompt"
	ToolExtractFields = "extract_fields"
	ToolListContracts = "list_contracts"
	ToolGetContract   = "get_contract"
	ToolAskField      = scenario.AskFieldTool
)

// error_config keys.
const (
	FailPrompt     = "prompt_fails"
	FailExtraction = "extraction_fails"
	FailContracts  = "contracts_fail"
)

// ErrUnknownTool is returned for a tool the toolbox does not provide.
var ErrUnknownTool = errors.New("voiceagent: unknown tool")

// PromptSource supplies prompt templates and their field lists.
type PromptSource interface {
	Content(name string) (string, error)
	Fields(name string) ([]string, error)
}

// ToolSpec describes a tool in the agent's system prompt.
type ToolSpec struct {
	Name        string
	Description string
	Arguments   string
}

var toolSpecs = []ToolSpec{
	{ToolGetPrompt, "Load the contract prompt template and the fields already known.", `{}`},
	{ToolExtractFields, "Send the caller's latest statement for field extraction. Returns extracted fields and how many are still missing.", `{"text": "<caller statement>"}`},
	{ToolListContracts, "List the caller's existing contracts.", `{}`},
	{ToolGetContract, "Load one existing contract.", `{"contractId": "<id>"}`},
	{ToolAskField, "Record which contract field you are asking the caller for.", `{"field": "<field_id>"}`},
}

// Toolbox serves the mocked tools of one scenario session. Extraction
// responses are consumed in order; once exhausted the last one repeats.
type Toolbox struct {
	sc      *scenario.Scenario
	prompts PromptSource

	mu          sync.Mutex
	extractions int
	fields      map[string]any
	missing     int
}

func NewToolbox(sc *scenario.Scenario, prompts PromptSource) *Toolbox {
	fields := make(map[string]any, len(sc.PrefilledFields))
	for k, v := range sc.PrefilledFields {
		fields[k] = v
	}
	return &Toolbox{sc: sc, prompts: prompts, fields: fields, missing: -1}
}

func (tb *Toolbox) fails(key string) bool {
	return tb.sc.ErrorConfig[key]
}

// Call runs a tool and returns its JSON result. Injected failures are
// returned as errors for the agent to handle.
func (tb *Toolbox) Call(ctx context.Context, call scenario.ToolCall) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch call.Name {
	case ToolGetPrompt:
		return tb.getPrompt()
	case ToolExtractFields:
		return tb.extract()
	case ToolListContracts:
		if tb.fails(FailContracts) {
			return "", errors.New("contract service unavailable")
		}
		return encode(map[string]any{"contracts": tb.contracts()})
	case ToolGetContract:
		if tb.fails(FailContracts) {
			return "", errors.New("contract service unavailable")
		}
		id, _ := call.Arguments["contractId"].(string)
		for _, c := range tb.sc.MockContracts {
			if strings.EqualFold(c.ContractID, id) {
				return encode(c)
			}
		}
		return "", fmt.Errorf("contract %q not found", id)
	case ToolAskField:
		field, _ := call.Arguments["field"].(string)
		if strings.TrimSpace(field) == "" {
			return "", errors.New("field is required")
		}
		return encode(map[string]any{"asked": field})
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
}

func (tb *Toolbox) getPrompt() (string, error) {
	if tb.fails(FailPrompt) {
		return "", errors.New("prompt service unavailable")
	}
	out := map[string]any{
		"prefilled_fields": tb.sc.PrefilledFields,
		"mode":             tb.sc.Mode,
	}
	if tb.sc.MockPromptFile != "" && tb.prompts != nil {
		content, err := tb.prompts.Content(tb.sc.MockPromptFile)
		if err != nil {
			return "", err
		}
		out["prompt"] = content
	}
	return encode(out)
}

func (tb *Toolbox) extract() (string, error) {
	if tb.fails(FailExtraction) {
		return "", errors.New("extraction service unavailable")
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if len(tb.sc.MockExtractResponses) == 0 {
		return encode(map[string]any{"fieldsJson": tb.fields, "missingFieldsCount": tb.missing})
	}
	idx := tb.extractions
	if idx >= len(tb.sc.MockExtractResponses) {
		idx = len(tb.sc.MockExtractResponses) - 1
	}
	tb.extractions++
	resp := tb.sc.MockExtractResponses[idx]
	for k, v := range resp.FieldsJSON {
		tb.fields[k] = v
	}
	tb.missing = resp.MissingFieldsCount
	return encode(resp)
}

// Known returns a copy of every field value known so far.
func (tb *Toolbox) Known() map[string]any {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	out := make(map[string]any, len(tb.fields))
	for k, v := range tb.fields {
		out[k] = v
	}
	return out
}

// Missing is the last reported missingFieldsCount, or -1 before any
// extraction.
func (tb *Toolbox) Missing() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.missing
}

func (tb *Toolbox) contracts() []scenario.MockContract {
	if tb.sc.IsGuest && tb.sc.GuestContractID != "" {
		for _, c := range tb.sc.MockContracts {
			if c.ContractID == tb.sc.GuestContractID {
				return []scenario.MockContract{c}
			}
		}
		return []scenario.MockContract{}
	}
	if tb.sc.MockContracts == nil {
		return []scenario.MockContract{}
	}
	return tb.sc.MockContracts
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("voiceagent: encode tool result: %w", err)
	}
	return string(raw), nil
}
