package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstChoice(t *testing.T) {
	tests := []struct {
		name    string
		resp    *ChatResponse
		wantErr bool
		errMsg  string
		want    string
	}{
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
			errMsg:  "nil ChatResponse",
		},
		{
			name:    "empty choices",
			resp:    &ChatResponse{Choices: []ChatChoice{}},
			wantErr: true,
			errMsg:  "empty choices",
		},
		{
			name: "single choice",
			resp: &ChatResponse{
				Choices: []ChatChoice{
					{Index: 0, Message: Message{Content: Ptr("hello")}},
				},
			},
			want: "hello",
		},
		{
			name: "multiple choices returns first",
			resp: &ChatResponse{
				Choices: []ChatChoice{
					{Index: 0, Message: Message{Content: Ptr("first")}},
					{Index: 1, Message: Message{Content: Ptr("second")}},
				},
			},
			want: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			choice, err := FirstChoice(tt.resp)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, choice.Message.Content)
			assert.Equal(t, tt.want, *choice.Message.Content)
		})
	}
}

func TestFirstFinishReason(t *testing.T) {
	assert.Nil(t, FirstFinishReason(nil))
	assert.Nil(t, FirstFinishReason(&ChatResponse{}))

	resp := &ChatResponse{Choices: []ChatChoice{
		{Index: 0, FinishReason: Ptr("length")},
		{Index: 1, FinishReason: Ptr("stop")},
	}}
	require.NotNil(t, FirstFinishReason(resp))
	assert.Equal(t, "length", *FirstFinishReason(resp))

	assert.Nil(t, FirstCompletionsFinishReason(nil))
	cresp := &CompletionsResponse{Choices: []CompletionsChoice{{FinishReason: Ptr("stop")}}}
	assert.Equal(t, "stop", *FirstCompletionsFinishReason(cresp))
}

func TestChoiceCount(t *testing.T) {
	tests := []struct {
		name    string
		n       *int
		prompts int
		want    int
	}{
		{"nil n single prompt", nil, 1, 1},
		{"zero n falls back", Ptr(0), 1, 1},
		{"n per prompt", Ptr(3), 1, 3},
		{"prompts times n", Ptr(2), 3, 6},
		{"no prompts counts as one", Ptr(2), 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChoiceCount(tt.n, tt.prompts))
		})
	}
}

func TestChunkConstructors(t *testing.T) {
	c := NewChatChunk(ChatDelta{Content: Ptr("hi")})
	assert.Equal(t, ChunkKindChat, c.Kind)
	require.NotNil(t, c.Chat)
	assert.Nil(t, c.Completions)
	assert.Equal(t, "chat", c.Kind.String())

	cc := NewCompletionsChunk(CompletionsDelta{Choices: []CompletionsChoiceDelta{{Index: 0}}})
	assert.Equal(t, ChunkKindCompletions, cc.Kind)
	require.NotNil(t, cc.Completions)
	assert.Nil(t, cc.Chat)
	assert.Equal(t, "completions", cc.Kind.String())

	assert.Equal(t, "unknown", ChunkKind(0).String())
}
