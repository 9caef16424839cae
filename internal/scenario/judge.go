package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/realty-voice-platform/internal/llm"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// Intent judge strategies accepted by NewIntentJudge.
const (
	JudgeAuto    = "auto"
	JudgeLLM     = "llm"
	JudgeKeyword = "keyword"
)

// Verdict is an intent judgement. Reason explains a failure in plain language.
type Verdict struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

// IntentJudge decides whether a reply conveys an intent. It is semantic, not
// a literal match.
type IntentJudge interface {
	Judge(ctx context.Context, intent, reply string) (Verdict, error)
}

// NewIntentJudge builds the judge for strategy. "auto" uses the LLM when one
// is configured and falls back to keywords when it errors.
func NewIntentJudge(strategy string, client llm.Client, model string, logger *logging.Logger) (IntentJudge, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case JudgeKeyword:
		return KeywordJudge{}, nil
	case JudgeLLM:
		if client == nil {
			return nil, errors.New("scenario: llm intent judge requires an llm client")
		}
		return NewLLMJudge(client, model, nil, logger), nil
	case "", JudgeAuto:
		if client == nil {
			return KeywordJudge{}, nil
		}
		return NewLLMJudge(client, model, KeywordJudge{}, logger), nil
	default:
		return nil, fmt.Errorf("scenario: unknown intent judge strategy %q", strategy)
	}
}

// KeywordJudge passes when at least half of the intent's content words (and
// at least one) appear in the reply, matching on word stems.
type KeywordJudge struct {
	// MinOverlap overrides the 0.5 default ratio.
	MinOverlap float64
}

func (k KeywordJudge) Judge(_ context.Context, intent, reply string) (Verdict, error) {
	want := contentWords(intent)
	if len(want) == 0 {
		return Verdict{Pass: true}, nil
	}
	have := map[string]bool{}
	for _, w := range contentWords(reply) {
		have[stem(w)] = true
	}

	var missing []string
	found := 0
	for _, w := range want {
		if have[stem(w)] {
			found++
			continue
		}
		missing = append(missing, w)
	}

	threshold := k.MinOverlap
	if threshold <= 0 {
		threshold = 0.5
	}
	if found > 0 && float64(found)/float64(len(want)) >= threshold {
		return Verdict{Pass: true}, nil
	}
	if strings.TrimSpace(reply) == "" {
		return Verdict{Reason: fmt.Sprintf("the agent gave no reply, but it should %s", intent)}, nil
	}
	return Verdict{Reason: fmt.Sprintf(
		"the reply does not appear to %s; it never mentions %s",
		intent, quoteList(missing),
	)}, nil
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "do": true, "for": true, "from": true, "has": true, "have": true, "in": true,
	"is": true, "it": true, "its": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "their": true, "them": true, "they": true, "this": true, "to": true,
	"was": true, "were": true, "will": true, "with": true, "you": true, "your": true,
	"agent": true, "user": true, "should": true, "would": true, "about": true, "into": true,
	"then": true, "than": true, "what": true, "which": true, "who": true, "whether": true,
}

func contentWords(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(NormalizeField(s)) {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// stem strips common English suffixes so "asks", "asking" and "asked" agree.
func stem(w string) string {
	for _, suffix := range []string{"ing", "ed", "s"} {
		if len(w) > len(suffix)+2 && strings.HasSuffix(w, suffix) {
			w = strings.TrimSuffix(w, suffix)
			break
		}
	}
	if len(w) > 3 && strings.HasSuffix(w, "e") {
		w = strings.TrimSuffix(w, "e")
	}
	return w
}

func quoteList(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = fmt.Sprintf("%q", w)
	}
	return strings.Join(quoted, ", ")
}

const judgeSystemPrompt = `You grade a real-estate voice assistant's reply.
Decide whether the reply conveys the expected intent. Paraphrases count; exact wording does not matter.
Respond with only a JSON object: {"pass": true|false, "reason": "<one sentence explaining a failure, empty when passing>"}`

// LLMJudge asks a language model for a verdict. When the model fails or
// answers in an unexpected shape the fallback judge decides, if set.
type LLMJudge struct {
	client   llm.Client
	model    string
	fallback IntentJudge
	logger   *logging.Logger
}

func NewLLMJudge(client llm.Client, model string, fallback IntentJudge, logger *logging.Logger) *LLMJudge {
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMJudge{client: client, model: model, fallback: fallback, logger: logger}
}

func (j *LLMJudge) Judge(ctx context.Context, intent, reply string) (Verdict, error) {
	resp, err := j.client.Complete(ctx, llm.Request{
		Model:  j.model,
		System: []string{judgeSystemPrompt},
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Expected intent: %s\n\nAssistant reply:\n%s", intent, reply),
		}},
		MaxTokens:   200,
		Temperature: 0,
	})
	if err == nil {
		var verdict Verdict
		verdict, err = parseVerdict(resp.Text)
		if err == nil {
			if !verdict.Pass && strings.TrimSpace(verdict.Reason) == "" {
				verdict.Reason = "the reply does not convey the expected intent"
			}
			if verdict.Pass {
				verdict.Reason = ""
			}
			return verdict, nil
		}
	}
	if j.fallback == nil {
		return Verdict{}, fmt.Errorf("scenario: llm intent judge: %w", err)
	}
	j.logger.Warn("llm intent judge failed, using fallback", "error", err)
	return j.fallback.Judge(ctx, intent, reply)
}

func parseVerdict(text string) (Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Verdict{}, fmt.Errorf("no JSON object in judge response %q", truncate(text, 120))
	}
	var raw struct {
		Pass   *bool  `json:"pass"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Verdict{}, fmt.Errorf("decode judge response: %w", err)
	}
	if raw.Pass == nil {
		return Verdict{}, errors.New("judge response has no pass field")
	}
	return Verdict{Pass: *raw.Pass, Reason: strings.TrimSpace(raw.Reason)}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
