package scenario

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestToolExpectationsAreMutuallyExclusive(t *testing.T) {
	var turn TurnSpec
	turn.SetExpectToolCall(ExpectTool("extract_fields"))
	turn.SetExpectNoToolCall(true)
	assert.Nil(t, turn.ExpectToolCall)
	assert.True(t, turn.ExpectNoToolCall)

	turn.SetExpectToolCall(&ToolCallExpectation{Name: "get_contract", Arguments: map[string]any{"contractId": "c-1"}})
	assert.False(t, turn.ExpectNoToolCall)
	require.NotNil(t, turn.ExpectToolCall)
	assert.Equal(t, "get_contract", turn.ExpectToolCall.Name)

	raw, err := json.Marshal(turn)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "expect_no_tool_call")
}

func TestSetExpectNoToolCallFalseKeepsToolCall(t *testing.T) {
	turn := TurnSpec{ExpectToolCall: ExpectTool("ask_field")}
	turn.SetExpectNoToolCall(false)
	assert.NotNil(t, turn.ExpectToolCall)
}

func TestTurnValidateRejectsBothToolExpectations(t *testing.T) {
	turn := TurnSpec{ExpectToolCall: ExpectTool("ask_field"), ExpectNoToolCall: true}
	err := turn.Validate()
	assert.True(t, errors.Is(err, ErrConflictingToolExpectation))
	assert.True(t, errors.Is(err, ErrInvalid))

	sc := Scenario{Name: "conflict", Turns: []TurnSpec{{}, turn}}
	err = sc.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn 2")
}

func TestToolCallExpectationJSONForms(t *testing.T) {
	var turn TurnSpec
	require.NoError(t, json.Unmarshal([]byte(`{"user_input":"hi","expect_tool_call":"get_prompt"}`), &turn))
	assert.Equal(t, "get_prompt", turn.ExpectToolCall.Name)
	assert.Empty(t, turn.ExpectToolCall.Arguments)

	require.NoError(t, json.Unmarshal([]byte(`{"expect_tool_call":{"name":"get_contract","arguments":{"contractId":"c-9"}}}`), &turn))
	assert.Equal(t, "get_contract", turn.ExpectToolCall.Name)
	assert.Equal(t, "c-9", turn.ExpectToolCall.Arguments["contractId"])

	raw, err := json.Marshal(ExpectTool("get_prompt"))
	require.NoError(t, err)
	assert.JSONEq(t, `"get_prompt"`, string(raw))

	assert.Error(t, json.Unmarshal([]byte(`{"expect_tool_call":42}`), &turn))
}

func TestToolCallExpectationYAMLForms(t *testing.T) {
	doc := `
name: Edit flow
turns:
  - user_input: edit my offer
    expect_tool_call: list_contracts
  - user_input: the one on Main Street
    expect_tool_call:
      name: get_contract
      arguments:
        contractId: c-1
`
	var sc Scenario
	require.NoError(t, yaml.Unmarshal([]byte(doc), &sc))
	require.Len(t, sc.Turns, 2)
	assert.Equal(t, "list_contracts", sc.Turns[0].ExpectToolCall.Name)
	assert.Equal(t, "c-1", sc.Turns[1].ExpectToolCall.Arguments["contractId"])

	out, err := yaml.Marshal(sc.Turns[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), "expect_tool_call: list_contracts")
}

func TestNormalize(t *testing.T) {
	sc := Scenario{
		Name: "  Counter offer  ",
		Tags: []string{"edit", "", "counter", "edit"},
		Turns: []TurnSpec{{
			ExpectContains:   []string{"", "price"},
			ExpectToolCall:   &ToolCallExpectation{},
			ExpectFieldAsked: " buyer_name ",
		}},
	}
	sc.Normalize()
	assert.Equal(t, "Counter offer", sc.Name)
	assert.Equal(t, []string{"counter", "edit"}, sc.Tags)
	assert.Equal(t, []string{"price"}, sc.Turns[0].ExpectContains)
	assert.Nil(t, sc.Turns[0].ExpectToolCall)
	assert.Equal(t, "buyer_name", sc.Turns[0].ExpectFieldAsked)
}
