package voiceagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// ScriptedFactory starts deterministic rule-based sessions. It needs no
// model, so the runner works offline: the agent walks the prompt's field list
// in order, skipping known fields, and asks for one field per turn.
type ScriptedFactory struct {
	prompts PromptSource
	logger  *logging.Logger
}

func NewScriptedFactory(prompts PromptSource, logger *logging.Logger) *ScriptedFactory {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScriptedFactory{prompts: prompts, logger: logger}
}

func (f *ScriptedFactory) NewSession(ctx context.Context, sc *scenario.Scenario) (scenario.Session, error) {
	var fields []string
	if sc.MockPromptFile != "" && f.prompts != nil && !sc.ErrorConfig[FailPrompt] {
		fs, err := f.prompts.Fields(sc.MockPromptFile)
		if err != nil {
			return nil, fmt.Errorf("voiceagent: load prompt fields %s: %w", sc.MockPromptFile, err)
		}
		fields = fs
	}
	return &scriptedSession{sc: sc, tools: NewToolbox(sc, f.prompts), fields: fields}, nil
}

type scriptedSession struct {
	sc      *scenario.Scenario
	tools   *Toolbox
	fields  []string
	started bool
	asked   string
}

func (s *scriptedSession) Respond(ctx context.Context, userInput string) (scenario.Observation, error) {
	var obs scenario.Observation
	call := func(name string, args map[string]any) (string, error) {
		if args == nil {
			args = map[string]any{}
		}
		tc := scenario.ToolCall{Name: name, Arguments: args}
		obs.ToolCalls = append(obs.ToolCalls, tc)
		return s.tools.Call(ctx, tc)
	}

	if !s.started {
		s.started = true
		if _, err := call(ToolGetPrompt, nil); err != nil {
			if ctx.Err() != nil {
				return obs, ctx.Err()
			}
			obs.Reply = "Sorry, I can't load the contract template right now. Please try again in a few minutes."
			return obs, nil
		}
		if strings.EqualFold(s.sc.Mode, "edit") {
			if _, err := call(ToolListContracts, nil); err != nil {
				if ctx.Err() != nil {
					return obs, ctx.Err()
				}
				obs.Reply = "Sorry, I couldn't load your contracts right now."
				return obs, nil
			}
			return s.chooseContract(obs), nil
		}
	}

	if strings.TrimSpace(userInput) != "" {
		if id := s.mentionedContract(userInput); id != "" {
			if _, err := call(ToolGetContract, map[string]any{"contractId": id}); err != nil {
				if ctx.Err() != nil {
					return obs, ctx.Err()
				}
				obs.Reply = "Sorry, I couldn't open that contract."
				return obs, nil
			}
		}
		if _, err := call(ToolExtractFields, map[string]any{"text": userInput}); err != nil {
			if ctx.Err() != nil {
				return obs, ctx.Err()
			}
			obs.Reply = "Sorry, I had trouble saving that. Could you repeat it?"
			return obs, nil
		}
	}

	next := s.nextField()
	if next == "" || s.tools.Missing() == 0 {
		s.asked = ""
		obs.Reply = joinReply(obs.Reply, "Great, I have everything I need to draft the contract.")
		return obs, nil
	}
	if _, err := call(ToolAskField, map[string]any{"field": next}); err != nil {
		return obs, err
	}
	ack := ""
	if s.asked != "" && s.asked != next {
		ack = "Got it. "
	}
	s.asked = next
	obs.Reply = joinReply(obs.Reply, fmt.Sprintf("%sWhat is the %s?", ack, scenario.NormalizeField(next)))
	return obs, nil
}

func (s *scriptedSession) chooseContract(obs scenario.Observation) scenario.Observation {
	contracts := s.tools.contracts()
	switch len(contracts) {
	case 0:
		obs.Reply = "I couldn't find any contracts to edit."
	case 1:
		obs.Reply = fmt.Sprintf("I found your contract for %s. What would you like to change?", contracts[0].Address)
	default:
		addresses := make([]string, len(contracts))
		for i, c := range contracts {
			addresses[i] = c.Address
		}
		obs.Reply = fmt.Sprintf("Which contract would you like to edit: %s?", strings.Join(addresses, " or "))
	}
	return obs
}

// mentionedContract matches the utterance against mock contract ids and
// addresses.
func (s *scriptedSession) mentionedContract(input string) string {
	lower := strings.ToLower(input)
	for _, c := range s.tools.contracts() {
		if c.ContractID != "" && strings.Contains(lower, strings.ToLower(c.ContractID)) {
			return c.ContractID
		}
		if c.Address != "" && strings.Contains(lower, strings.ToLower(c.Address)) {
			return c.ContractID
		}
	}
	return ""
}

func (s *scriptedSession) nextField() string {
	known := s.tools.Known()
	for _, f := range s.fields {
		if v, ok := known[f]; ok && v != nil && v != "" {
			continue
		}
		return f
	}
	return ""
}
