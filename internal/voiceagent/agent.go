package voiceagent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wolfman30/realty-voice-platform/internal/llm"
	"github.com/wolfman30/realty-voice-platform/internal/scenario"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// DefaultMaxToolIterations caps model round trips within one turn.
const DefaultMaxToolIterations = 4

// continuePrompt stands in for a turn with no user utterance.
const continuePrompt = "(The caller is silent. Continue the conversation.)"

// ErrToolLoop is returned when the model keeps calling tools past the cap.
var ErrToolLoop = errors.New("voiceagent: too many tool calls in one turn")

// LLMFactory starts LLM-driven agent sessions.
type LLMFactory struct {
	client        llm.Client
	model         string
	prompts       PromptSource
	maxIterations int
	logger        *logging.Logger
}

func NewLLMFactory(client llm.Client, model string, prompts PromptSource, maxIterations int, logger *logging.Logger) *LLMFactory {
	if client == nil {
		panic("voiceagent: llm client cannot be nil")
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxToolIterations
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMFactory{client: client, model: model, prompts: prompts, maxIterations: maxIterations, logger: logger}
}

func (f *LLMFactory) NewSession(ctx context.Context, sc *scenario.Scenario) (scenario.Session, error) {
	tools := NewToolbox(sc, f.prompts)
	template := ""
	if sc.MockPromptFile != "" && f.prompts != nil && !sc.ErrorConfig[FailPrompt] {
		content, err := f.prompts.Content(sc.MockPromptFile)
		if err != nil {
			return nil, fmt.Errorf("voiceagent: load prompt %s: %w", sc.MockPromptFile, err)
		}
		template = content
	}
	return &llmSession{
		factory: f,
		tools:   tools,
		system:  systemPrompt(sc, template),
		logger:  f.logger.With("scenario", sc.Name),
	}, nil
}

type llmSession struct {
	factory *LLMFactory
	tools   *Toolbox
	system  []string
	history []llm.Message
	logger  *logging.Logger
}

// Respond runs one turn: the model may call tools several times before it
// answers the caller.
func (s *llmSession) Respond(ctx context.Context, userInput string) (scenario.Observation, error) {
	input := strings.TrimSpace(userInput)
	if input == "" {
		input = continuePrompt
	}
	s.history = append(s.history, llm.Message{Role: llm.RoleUser, Content: input})

	var obs scenario.Observation
	for i := 0; i < s.factory.maxIterations; i++ {
		resp, err := s.factory.client.Complete(ctx, llm.Request{
			Model:       s.factory.model,
			System:      s.system,
			Messages:    s.history,
			MaxTokens:   600,
			Temperature: 0.2,
		})
		if err != nil {
			return obs, fmt.Errorf("voiceagent: complete: %w", err)
		}
		s.history = append(s.history, llm.Message{Role: llm.RoleAssistant, Content: resp.Text})

		calls, reply := ParseToolCalls(resp.Text)
		if reply != "" {
			obs.Reply = joinReply(obs.Reply, reply)
		}
		if len(calls) == 0 {
			return obs, nil
		}

		var results strings.Builder
		for _, call := range calls {
			obs.ToolCalls = append(obs.ToolCalls, call)
			out, err := s.tools.Call(ctx, call)
			if err != nil {
				if ctx.Err() != nil {
					return obs, ctx.Err()
				}
				s.logger.Debug("tool call failed", "tool", call.Name, "error", err)
				out = fmt.Sprintf(`{"error": %q}`, err.Error())
			}
			fmt.Fprintf(&results, "TOOL_RESULT %s %s\n", call.Name, out)
		}
		s.history = append(s.history, llm.Message{Role: llm.RoleUser, Content: strings.TrimSpace(results.String())})
	}
	return obs, ErrToolLoop
}

func joinReply(prev, next string) string {
	if prev == "" {
		return next
	}
	return prev + " " + next
}

func systemPrompt(sc *scenario.Scenario, template string) []string {
	var b strings.Builder
	b.WriteString("You are a voice assistant that helps real-estate agents fill in contracts by phone.\n")
	b.WriteString("Speak in short sentences and ask for one missing field at a time.\n")
	b.WriteString("Never ask for a field that is already known.\n\n")
	b.WriteString("To use a tool, write a line of the form\n")
	b.WriteString(ToolCallMarker + ` {"name": "<tool>", "arguments": {...}}` + "\n")
	b.WriteString("and wait for the TOOL_RESULT message before answering the caller. Available tools:\n")
	for _, spec := range toolSpecs {
		fmt.Fprintf(&b, "- %s %s: %s\n", spec.Name, spec.Arguments, spec.Description)
	}
	parts := []string{b.String()}

	var ctxb strings.Builder
	if sc.Mode != "" {
		fmt.Fprintf(&ctxb, "Mode: %s\n", sc.Mode)
	}
	if sc.ContractType != "" {
		fmt.Fprintf(&ctxb, "Contract type: %s\n", sc.ContractType)
	}
	if sc.IsGuest {
		fmt.Fprintf(&ctxb, "The caller is a guest working on contract %s.\n", sc.GuestContractID)
	}
	if len(sc.PrefilledFields) > 0 {
		ctxb.WriteString("Known fields:\n")
		keys := make([]string, 0, len(sc.PrefilledFields))
		for k := range sc.PrefilledFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&ctxb, "- %s: %s\n", k, sc.PrefilledFields[k])
		}
	}
	if ctxb.Len() > 0 {
		parts = append(parts, ctxb.String())
	}
	if strings.TrimSpace(template) != "" {
		parts = append(parts, template)
	}
	return parts
}
