// Package scenario defines voice-agent test scenarios, the turn-check engine
// that evaluates them and the runner that executes them.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Run statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
	StatusError  = "error"
)

// Scenario is a persisted, declarative multi-turn conversation with
// expectations. It is also the body of create and update requests.
type Scenario struct {
	Name                 string                `json:"name" yaml:"name"`
	Description          string                `json:"description" yaml:"description"`
	Tags                 []string              `json:"tags" yaml:"tags,omitempty"`
	Category             string                `json:"category,omitempty" yaml:"category,omitempty"`
	ContractType         string                `json:"contract_type,omitempty" yaml:"contract_type,omitempty"`
	Mode                 string                `json:"mode,omitempty" yaml:"mode,omitempty"`
	MockPromptFile       string                `json:"mock_prompt_file,omitempty" yaml:"mock_prompt_file,omitempty"`
	PrefilledFields      map[string]string     `json:"prefilled_fields,omitempty" yaml:"prefilled_fields,omitempty"`
	MockExtractResponses []MockExtractResponse `json:"mock_extract_responses,omitempty" yaml:"mock_extract_responses,omitempty"`
	MockContracts        []MockContract        `json:"mock_contracts,omitempty" yaml:"mock_contracts,omitempty"`
	ErrorConfig          map[string]bool       `json:"error_config,omitempty" yaml:"error_config,omitempty"`
	IsGuest              bool                  `json:"is_guest,omitempty" yaml:"is_guest,omitempty"`
	GuestContractID      string                `json:"guest_contract_id,omitempty" yaml:"guest_contract_id,omitempty"`
	Turns                []TurnSpec            `json:"turns" yaml:"turns"`
}

// ScenarioCreateRequest is the body of POST /scenarios and PUT /scenarios/{name}.
type ScenarioCreateRequest = Scenario

// ScenarioDetail is a full scenario plus its durable identifier.
type ScenarioDetail struct {
	Scenario `yaml:",inline"`
	FilePath string `json:"file_path" yaml:"-"`
}

// ScenarioSummary is the catalog projection of a scenario.
type ScenarioSummary struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Tags         []string    `json:"tags"`
	Category     string      `json:"category,omitempty"`
	ContractType string      `json:"contract_type,omitempty"`
	Mode         string      `json:"mode,omitempty"`
	TurnCount    int         `json:"turn_count"`
	FilePath     string      `json:"file_path"`
	LastResult   *LastResult `json:"last_result,omitempty"`
}

// LastResult is the outcome of the most recent run of a scenario.
type LastResult struct {
	Status     string    `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	RanAt      time.Time `json:"ran_at"`
}

// MockExtractResponse is one canned reply of the extract_fields tool,
// consumed in order.
type MockExtractResponse struct {
	MissingFieldsCount int            `json:"missingFieldsCount" yaml:"missingFieldsCount"`
	FieldsJSON         map[string]any `json:"fieldsJson" yaml:"fieldsJson"`
	RequiredFields     []string       `json:"requiredFields,omitempty" yaml:"requiredFields,omitempty"`
	Message            string         `json:"message,omitempty" yaml:"message,omitempty"`
}

// MockContract stands in for an existing contract in edit and counter-offer flows.
type MockContract struct {
	ContractID   string `json:"contractId" yaml:"contractId"`
	Address      string `json:"address" yaml:"address"`
	BuyerName    string `json:"buyerName" yaml:"buyerName"`
	SellerName   string `json:"sellerName" yaml:"sellerName"`
	DocumentType string `json:"documentType" yaml:"documentType"`
}

// TurnSpec is one simulated exchange and its expectations. An empty UserInput
// lets the agent continue without a new utterance.
type TurnSpec struct {
	UserInput           string               `json:"user_input" yaml:"user_input"`
	ExpectToolCall      *ToolCallExpectation `json:"expect_tool_call,omitempty" yaml:"expect_tool_call,omitempty"`
	ExpectNoToolCall    bool                 `json:"expect_no_tool_call,omitempty" yaml:"expect_no_tool_call,omitempty"`
	ExpectMessageIntent string               `json:"expect_message_intent,omitempty" yaml:"expect_message_intent,omitempty"`
	ExpectContains      []string             `json:"expect_contains,omitempty" yaml:"expect_contains,omitempty"`
	ExpectNotContains   []string             `json:"expect_not_contains,omitempty" yaml:"expect_not_contains,omitempty"`
	ExpectFieldAsked    string               `json:"expect_field_asked,omitempty" yaml:"expect_field_asked,omitempty"`
	ExpectFieldNotAsked []string             `json:"expect_field_not_asked,omitempty" yaml:"expect_field_not_asked,omitempty"`
}

// ToolCallExpectation is written either as a bare tool name or as
// {name, arguments}. Arguments are matched as a subset of the actual call.
type ToolCallExpectation struct {
	Name      string         `json:"name" yaml:"name"`
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// ExpectTool returns a name-only expectation.
func ExpectTool(name string) *ToolCallExpectation {
	return &ToolCallExpectation{Name: name}
}

type toolCallExpectationObject ToolCallExpectation

func (e ToolCallExpectation) MarshalJSON() ([]byte, error) {
	if len(e.Arguments) == 0 {
		return json.Marshal(e.Name)
	}
	return json.Marshal(toolCallExpectationObject(e))
}

func (e *ToolCallExpectation) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*e = ToolCallExpectation{Name: name}
		return nil
	}
	var obj toolCallExpectationObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("scenario: expect_tool_call must be a string or {name, arguments}: %w", err)
	}
	*e = ToolCallExpectation(obj)
	return nil
}

func (e ToolCallExpectation) MarshalYAML() (any, error) {
	if len(e.Arguments) == 0 {
		return e.Name, nil
	}
	return toolCallExpectationObject(e), nil
}

func (e *ToolCallExpectation) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*e = ToolCallExpectation{Name: value.Value}
		return nil
	case yaml.MappingNode:
		var obj toolCallExpectationObject
		if err := value.Decode(&obj); err != nil {
			return err
		}
		*e = ToolCallExpectation(obj)
		return nil
	default:
		return errors.New("scenario: expect_tool_call must be a string or {name, arguments}")
	}
}

// ToolCall is a tool invocation the agent actually made.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// TurnCheckResult is the outcome of one assertion on one turn.
type TurnCheckResult struct {
	Type     string `json:"type"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// TurnResult is the observed output of one executed turn.
type TurnResult struct {
	Turn          int               `json:"turn"`
	UserInput     string            `json:"user_input"`
	AgentResponse string            `json:"agent_response"`
	ToolCalls     []ToolCall        `json:"tool_calls"`
	Checks        []TurnCheckResult `json:"checks"`
}

// ScenarioRunResult is the outcome of one scenario execution.
type ScenarioRunResult struct {
	Name       string       `json:"name"`
	RunID      string       `json:"run_id,omitempty"`
	Status     string       `json:"status"`
	DurationMS int64        `json:"duration_ms"`
	Error      string       `json:"error,omitempty"`
	Turns      []TurnResult `json:"turns"`
}

// RunAllResult aggregates a run of every persisted scenario.
type RunAllResult struct {
	Total      int                 `json:"total"`
	Passed     int                 `json:"passed"`
	Failed     int                 `json:"failed"`
	Errors     int                 `json:"errors"`
	DurationMS int64               `json:"duration_ms"`
	Results    []ScenarioRunResult `json:"results"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Description    string `json:"description"`
	MockPromptFile string `json:"mock_prompt_file,omitempty"`
}

// PromptList is the body of GET /prompts.
type PromptList struct {
	Prompts []string `json:"prompts"`
}

// PromptContent is the body of GET /prompts/{name}.
type PromptContent struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// PromptFields is the body of GET /prompt-fields/{name}.
type PromptFields struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// Health is the body of GET /health.
type Health struct {
	Status         string `json:"status"`
	ScenariosCount int    `json:"scenarios_count"`
	PromptsCount   int    `json:"prompts_count"`
}

// Summary projects a scenario into its catalog entry.
func (s *Scenario) Summary(filePath string) ScenarioSummary {
	tags := append([]string(nil), s.Tags...)
	if tags == nil {
		tags = []string{}
	}
	sort.Strings(tags)
	return ScenarioSummary{
		Name:         s.Name,
		Description:  s.Description,
		Tags:         tags,
		Category:     s.Category,
		ContractType: s.ContractType,
		Mode:         s.Mode,
		TurnCount:    len(s.Turns),
		FilePath:     filePath,
	}
}
