package openai

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/BaSui01/genaiscope/llm"
)

// =============================================================================
// Wire types
// =============================================================================
// JSON shapes of the OpenAI REST API. Kept unexported: callers only see llm types.
// =============================================================================

type wireMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content,omitempty"` // string 或 []wireContentPart
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function wireFunction `json:"function"`
}

// wireFunction.Arguments 在 OpenAI API 中是 JSON 编码后的字符串。
type wireFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

type wireChatRequest struct {
	Model       string            `json:"model"`
	Messages    []wireMessage     `json:"messages"`
	N           *int              `json:"n,omitempty"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	User        string            `json:"user,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
}

type wireCompletionsRequest struct {
	Model       string   `json:"model"`
	Prompt      []string `json:"prompt"`
	N           *int     `json:"n,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	User        string   `json:"user,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
}

type wireUsage struct {
	PromptTokens     *int `json:"prompt_tokens"`
	CompletionTokens *int `json:"completion_tokens"`
	TotalTokens      *int `json:"total_tokens"`
}

type wireResponseMessage struct {
	Role      string         `json:"role,omitempty"`
	Content   *string        `json:"content,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireChatChoice struct {
	Index        int                  `json:"index"`
	Message      *wireResponseMessage `json:"message,omitempty"`
	Delta        *wireResponseMessage `json:"delta,omitempty"`
	FinishReason *string              `json:"finish_reason"`
}

type wireError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

type wireChatResponse struct {
	ID      string           `json:"id"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []wireChatChoice `json:"choices"`
	Usage   *wireUsage       `json:"usage,omitempty"`
	Error   *wireError       `json:"error,omitempty"`
}

type wireCompletionsChoice struct {
	Index        int     `json:"index"`
	Text         *string `json:"text"`
	FinishReason *string `json:"finish_reason"`
}

type wireCompletionsResponse struct {
	ID      string                  `json:"id"`
	Created int64                   `json:"created"`
	Model   string                  `json:"model"`
	Choices []wireCompletionsChoice `json:"choices"`
	Usage   *wireUsage              `json:"usage,omitempty"`
	Error   *wireError              `json:"error,omitempty"`
}

// =============================================================================
// Conversions
// =============================================================================

func toWireMessages(msgs []llm.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := wireMessage{
			Role:       string(m.Role),
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		switch {
		case m.Content != nil:
			wm.Content = *m.Content
		case len(m.Parts) > 0:
			wm.Content = toWireParts(m.Parts)
		}
		for _, tc := range m.ToolCalls {
			typ := tc.Type
			if typ == "" {
				typ = "function"
			}
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:       tc.ID,
				Type:     typ,
				Function: wireFunction{Name: tc.Name, Arguments: string(tc.Arguments)},
			})
		}
		out = append(out, wm)
	}
	return out
}

func toWireParts(parts []llm.ContentPart) []wireContentPart {
	out := make([]wireContentPart, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case llm.ContentPartText:
			out = append(out, wireContentPart{Type: "text", Text: p.Text})
		case llm.ContentPartImage:
			out = append(out, wireContentPart{
				Type:     "image_url",
				ImageURL: &wireImageURL{URL: p.ImageURL, Detail: p.ImageDetail},
			})
		}
	}
	return out
}

func toWireChatRequest(req *llm.ChatRequest, stream bool) wireChatRequest {
	return wireChatRequest{
		Model:       req.Model,
		Messages:    toWireMessages(req.Messages),
		N:           req.N,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		User:        req.User,
		Metadata:    req.Metadata,
		Stream:      stream,
	}
}

func toWireCompletionsRequest(req *llm.CompletionsRequest, stream bool) wireCompletionsRequest {
	return wireCompletionsRequest{
		Model:       req.Model,
		Prompt:      req.Prompts,
		N:           req.N,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		User:        req.User,
		Stream:      stream,
	}
}

func fromWireUsage(u *wireUsage) *llm.Usage {
	if u == nil {
		return nil
	}
	return &llm.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func fromWireToolCalls(calls []wireToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, llm.ToolCall{
			ID:        tc.ID,
			Type:      tc.Type,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}

func createdAt(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

func fromWireChatResponse(w wireChatResponse) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		ID:        w.ID,
		Model:     w.Model,
		Usage:     fromWireUsage(w.Usage),
		CreatedAt: createdAt(w.Created),
		Choices:   make([]llm.ChatChoice, 0, len(w.Choices)),
	}
	for _, c := range w.Choices {
		choice := llm.ChatChoice{Index: c.Index, FinishReason: c.FinishReason}
		if c.Message != nil {
			role := llm.Role(c.Message.Role)
			if role == "" {
				role = llm.RoleAssistant
			}
			choice.Message = llm.Message{
				Role:      role,
				Content:   c.Message.Content,
				ToolCalls: fromWireToolCalls(c.Message.ToolCalls),
			}
		}
		resp.Choices = append(resp.Choices, choice)
	}
	return resp
}

func fromWireCompletionsResponse(w wireCompletionsResponse) *llm.CompletionsResponse {
	resp := &llm.CompletionsResponse{
		ID:        w.ID,
		Model:     w.Model,
		Usage:     fromWireUsage(w.Usage),
		CreatedAt: createdAt(w.Created),
		Choices:   make([]llm.CompletionsChoice, 0, len(w.Choices)),
	}
	for _, c := range w.Choices {
		choice := llm.CompletionsChoice{Index: c.Index, FinishReason: c.FinishReason}
		if c.Text != nil {
			choice.Text = *c.Text
		}
		resp.Choices = append(resp.Choices, choice)
	}
	return resp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// decodeChatEvent 将一个 chat SSE 事件拆分为按候选的分片。
// 不含候选的事件（例如只带 usage 的尾包）产生一个无 ChoiceIndex 的分片。
func decodeChatEvent(data []byte) ([]llm.StreamChunk, error) {
	var w wireChatResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.Error != nil {
		return nil, streamError(w.Error)
	}

	id, model := optional(w.ID), optional(w.Model)
	if len(w.Choices) == 0 {
		return []llm.StreamChunk{llm.NewChatChunk(llm.ChatDelta{ID: id, Model: model})}, nil
	}

	chunks := make([]llm.StreamChunk, 0, len(w.Choices))
	for _, c := range w.Choices {
		d := llm.ChatDelta{
			ID:           id,
			Model:        model,
			ChoiceIndex:  llm.Ptr(c.Index),
			FinishReason: c.FinishReason,
		}
		if c.Delta != nil {
			if c.Delta.Role != "" {
				d.Role = llm.Ptr(llm.Role(c.Delta.Role))
			}
			d.Content = c.Delta.Content
		}
		chunks = append(chunks, llm.NewChatChunk(d))
	}
	return chunks, nil
}

// decodeCompletionsEvent 将一个 completions SSE 事件转换为分片。
func decodeCompletionsEvent(data []byte) ([]llm.StreamChunk, error) {
	var w wireCompletionsResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.Error != nil {
		return nil, streamError(w.Error)
	}

	d := llm.CompletionsDelta{
		ID:      optional(w.ID),
		Model:   optional(w.Model),
		Choices: make([]llm.CompletionsChoiceDelta, 0, len(w.Choices)),
	}
	for _, c := range w.Choices {
		d.Choices = append(d.Choices, llm.CompletionsChoiceDelta{
			Index:        c.Index,
			Text:         c.Text,
			FinishReason: c.FinishReason,
		})
	}
	return []llm.StreamChunk{llm.NewCompletionsChunk(d)}, nil
}

// streamError 将流中途的 error 事件转换为 *llm.Error。
// 流已经以 200 开始，HTTP 状态按服务端错误处理。
func streamError(w *wireError) *llm.Error {
	e := llm.ServiceError(http.StatusInternalServerError, w.Message, w.Type, w.Code)
	e.Code = llm.ErrUpstreamError
	return e
}
