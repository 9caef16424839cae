package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/realty-voice-platform/internal/llm"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// FieldSource lists the field identifiers a prompt collects.
type FieldSource interface {
	Fields(name string) ([]string, error)
}

// Generator drafts scenarios from a natural-language description.
type Generator struct {
	client llm.Client
	model  string
	fields FieldSource
	logger *logging.Logger
}

// NewGenerator creates a generator. With a nil client every draft is an
// offline skeleton built from the prompt's fields.
func NewGenerator(client llm.Client, model string, fields FieldSource, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{client: client, model: model, fields: fields, logger: logger}
}

const generateSystemPrompt = `You write test scenarios for a real-estate voice assistant that fills in contract fields.
Return only a JSON object with keys: name, description, tags, category, contract_type, mode ("New" or "Edit"),
mock_prompt_file, prefilled_fields, turns. Each turn has user_input and any of: expect_tool_call (a tool name),
expect_no_tool_call, expect_message_intent, expect_contains, expect_not_contains, expect_field_asked,
expect_field_not_asked. Never set both expect_tool_call and expect_no_tool_call on one turn.`

// Generate returns a draft create request. It is never persisted here.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (ScenarioCreateRequest, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return ScenarioCreateRequest{}, fmt.Errorf("%w: description is required", ErrInvalid)
	}

	var fields []string
	if req.MockPromptFile != "" && g.fields != nil {
		f, err := g.fields.Fields(req.MockPromptFile)
		if err != nil {
			return ScenarioCreateRequest{}, err
		}
		fields = f
	}

	if g.client != nil {
		draft, err := g.generateWithLLM(ctx, desc, req.MockPromptFile, fields)
		if err == nil {
			return finishDraft(draft, desc, req.MockPromptFile), nil
		}
		g.logger.Warn("llm scenario generation failed, using skeleton", "error", err)
	}
	return finishDraft(skeleton(desc, fields), desc, req.MockPromptFile), nil
}

func (g *Generator) generateWithLLM(ctx context.Context, desc, promptFile string, fields []string) (ScenarioCreateRequest, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Description: %s\n", desc)
	if promptFile != "" {
		fmt.Fprintf(&user, "Prompt file: %s\n", promptFile)
	}
	if len(fields) > 0 {
		fmt.Fprintf(&user, "Known fields, in the order the agent asks for them: %s\n", strings.Join(fields, ", "))
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		Model:       g.model,
		System:      []string{generateSystemPrompt},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user.String()}},
		MaxTokens:   2000,
		Temperature: 0.2,
	})
	if err != nil {
		return ScenarioCreateRequest{}, err
	}
	start := strings.Index(resp.Text, "{")
	end := strings.LastIndex(resp.Text, "}")
	if start < 0 || end < start {
		return ScenarioCreateRequest{}, fmt.Errorf("no JSON object in response %q", truncate(resp.Text, 120))
	}
	var draft ScenarioCreateRequest
	if err := json.Unmarshal([]byte(resp.Text[start:end+1]), &draft); err != nil {
		return ScenarioCreateRequest{}, fmt.Errorf("decode draft: %w", err)
	}
	if len(draft.Turns) == 0 {
		return ScenarioCreateRequest{}, fmt.Errorf("draft has no turns")
	}
	return draft, nil
}

// skeleton asks for up to three of the prompt's fields in order.
func skeleton(desc string, fields []string) ScenarioCreateRequest {
	draft := ScenarioCreateRequest{
		Name: draftName(desc),
		Mode: "New",
		Turns: []TurnSpec{{
			UserInput:           desc,
			ExpectMessageIntent: "acknowledge the request and start collecting contract details",
		}},
	}
	lower := strings.ToLower(desc)
	if strings.Contains(lower, "edit") || strings.Contains(lower, "counter") || strings.Contains(lower, "amend") {
		draft.Mode = "Edit"
	}
	if len(fields) > 0 {
		draft.Turns[0].ExpectFieldAsked = fields[0]
	}
	for i := 1; i < len(fields) && i < 3; i++ {
		prev := fields[i-1]
		draft.Turns = append(draft.Turns, TurnSpec{
			UserInput:           fmt.Sprintf("The %s is <fill in>.", NormalizeField(prev)),
			ExpectFieldAsked:    fields[i],
			ExpectFieldNotAsked: []string{prev},
		})
	}
	return draft
}

func finishDraft(draft ScenarioCreateRequest, desc, promptFile string) ScenarioCreateRequest {
	if strings.TrimSpace(draft.Name) == "" {
		draft.Name = draftName(desc)
	}
	if strings.TrimSpace(draft.Description) == "" {
		draft.Description = desc
	}
	if promptFile != "" {
		draft.MockPromptFile = promptFile
	}
	draft.Tags = append(draft.Tags, "generated")
	for i := range draft.Turns {
		if draft.Turns[i].ExpectToolCall != nil && draft.Turns[i].ExpectNoToolCall {
			draft.Turns[i].SetExpectToolCall(draft.Turns[i].ExpectToolCall)
		}
	}
	draft.Normalize()
	return draft
}

func draftName(desc string) string {
	words := strings.Fields(NormalizeField(desc))
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}
