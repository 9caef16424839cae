package scenario

import (
	"regexp"
	"strings"
	"unicode"
)

// AskFieldTool is the tool the agent calls to ask the user for one field.
const AskFieldTool = "ask_field"

// argument names that carry the field being asked for
var fieldArgumentKeys = []string{"field", "field_name", "fieldName", "next_field", "nextField", "fields"}

// requestCues mark a non-question sentence as a request for information.
var requestCues = []string{
	"please provide", "please tell", "please share", "please confirm", "please give",
	"tell me", "let me know", "i need", "i'll need", "i will need", "can you", "could you",
}

// SolicitedFields returns the field identifiers the agent's tool calls name
// as being asked for, in call order without duplicates.
func SolicitedFields(obs Observation) []string {
	var out []string
	seen := map[string]bool{}
	add := func(v any) {
		s, ok := v.(string)
		if !ok {
			return
		}
		s = strings.TrimSpace(s)
		if s == "" || seen[NormalizeField(s)] {
			return
		}
		seen[NormalizeField(s)] = true
		out = append(out, s)
	}
	for _, call := range obs.ToolCalls {
		for _, key := range fieldArgumentKeys {
			switch v := call.Arguments[key].(type) {
			case []any:
				for _, item := range v {
					add(item)
				}
			case []string:
				for _, item := range v {
					add(item)
				}
			default:
				add(v)
			}
		}
	}
	return out
}

// fieldSolicited reports whether field is named by a tool call or mentioned
// in a question or request sentence of the reply.
func fieldSolicited(field string, solicited []string, reply string) bool {
	want := NormalizeField(field)
	if want == "" {
		return false
	}
	for _, s := range solicited {
		if NormalizeField(s) == want {
			return true
		}
	}
	for _, sentence := range requestSentences(reply) {
		if containsPhrase(NormalizeField(sentence), want) {
			return true
		}
	}
	return false
}

var possessive = regexp.MustCompile(`['’]s\b`)

// NormalizeField lowercases s and turns snake, kebab and camel case into
// space-separated words, dropping possessives and punctuation.
func NormalizeField(s string) string {
	s = possessive.ReplaceAllString(s, "")
	var b strings.Builder
	var prev rune
	for i, r := range s {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
				b.WriteRune(' ')
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
		prev = r
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func containsPhrase(text, phrase string) bool {
	return strings.Contains(" "+text+" ", " "+phrase+" ") ||
		strings.Contains(" "+text+" ", " "+phrase+"s ")
}

// requestSentences splits reply into sentences and keeps questions and
// sentences carrying a request cue.
func requestSentences(reply string) []string {
	var out []string
	start := 0
	emit := func(end int, question bool) {
		sentence := strings.TrimSpace(reply[start:end])
		start = end
		if sentence == "" {
			return
		}
		if question || hasRequestCue(sentence) {
			out = append(out, sentence)
		}
	}
	for i, r := range reply {
		switch r {
		case '?':
			emit(i+1, true)
		case '.', '!', '\n':
			emit(i+1, false)
		}
	}
	if start < len(reply) {
		emit(len(reply), false)
	}
	return out
}

func hasRequestCue(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, cue := range requestCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}
