package openai

import (
	"encoding/json"
	"testing"

	"github.com/BaSui01/genaiscope/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWireMessages(t *testing.T) {
	msgs := toWireMessages([]llm.Message{
		{Role: llm.RoleUser, Parts: []llm.ContentPart{
			{Type: llm.ContentPartText, Text: "what is this?"},
			{Type: llm.ContentPartImage, ImageURL: "https://x/cat.png", ImageDetail: "high"},
		}},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "lookup", Arguments: json.RawMessage(`{"q":"cat"}`)},
		}},
		{Role: llm.RoleTool, Content: llm.Ptr("a cat"), ToolCallID: "call_1"},
	})

	data, err := json.Marshal(msgs)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"role":"user","content":[
			{"type":"text","text":"what is this?"},
			{"type":"image_url","image_url":{"url":"https://x/cat.png","detail":"high"}}]},
		{"role":"assistant","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{\"q\":\"cat\"}"}}]},
		{"role":"tool","content":"a cat","tool_call_id":"call_1"}
	]`, string(data))
}

func TestDecodeChatEvent(t *testing.T) {
	t.Run("multiple choices", func(t *testing.T) {
		chunks, err := decodeChatEvent([]byte(`{"id":"c","model":"m","choices":[
			{"index":0,"delta":{"role":"assistant"},"finish_reason":null},
			{"index":1,"delta":{"content":"x"},"finish_reason":"stop"}]}`))
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, llm.RoleAssistant, *chunks[0].Chat.Role)
		assert.Nil(t, chunks[0].Chat.Content)
		assert.Equal(t, 1, *chunks[1].Chat.ChoiceIndex)
		assert.Equal(t, "stop", *chunks[1].Chat.FinishReason)
	})

	t.Run("usage only", func(t *testing.T) {
		chunks, err := decodeChatEvent([]byte(`{"id":"c","model":"m","choices":[],"usage":{"prompt_tokens":1}}`))
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Nil(t, chunks[0].Chat.ChoiceIndex)
		assert.Equal(t, "c", *chunks[0].Chat.ID)
	})

	t.Run("error event", func(t *testing.T) {
		_, err := decodeChatEvent([]byte(`{"error":{"message":"boom","type":"server_error","code":null}}`))
		var apiErr *llm.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, llm.ErrUpstreamError, apiErr.Code)
		assert.Empty(t, apiErr.ServiceCode)
	})
}

func TestDecodeCompletionsEvent(t *testing.T) {
	chunks, err := decodeCompletionsEvent([]byte(`{"id":"cmpl","choices":[{"index":2,"text":"hi","finish_reason":null}]}`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	d := chunks[0].Completions
	assert.Equal(t, "cmpl", *d.ID)
	assert.Nil(t, d.Model)
	require.Len(t, d.Choices, 1)
	assert.Equal(t, 2, d.Choices[0].Index)
	assert.Equal(t, "hi", *d.Choices[0].Text)
}
