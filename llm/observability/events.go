package observability

import (
	"encoding/json"

	"github.com/BaSui01/genaiscope/llm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EventSink 接收诊断事件。trace.Span 直接满足该接口。
type EventSink interface {
	AddEvent(name string, options ...trace.EventOption)
}

// eventGenericMessage 用于无法识别角色的消息。
const eventGenericMessage = "gen_ai.message"

type contentPayload struct {
	Content *string `json:"content,omitempty"`
}

type userMessagePayload struct {
	Content any `json:"content,omitempty"`
}

type toolMessagePayload struct {
	Content    *string `json:"content,omitempty"`
	ToolCallID string  `json:"tool_call_id,omitempty"`
}

type assistantMessagePayload struct {
	Content   *string           `json:"content,omitempty"`
	ToolCalls []toolCallPayload `json:"tool_calls,omitempty"`
}

type toolCallPayload struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function *functionPayload `json:"function,omitempty"`
}

type functionPayload struct {
	Name      string  `json:"name,omitempty"`
	Arguments *string `json:"arguments,omitempty"`
}

type contentPartPayload struct {
	Type        string  `json:"type"`
	DetailLevel string  `json:"detail_level,omitempty"`
	Content     *string `json:"content,omitempty"`
}

type choicePayload struct {
	Index        int                  `json:"index"`
	FinishReason *string              `json:"finish_reason,omitempty"`
	Message      choiceMessagePayload `json:"message"`
}

type choiceMessagePayload struct {
	Role      *string           `json:"role,omitempty"`
	Content   *string           `json:"content,omitempty"`
	ToolCalls []toolCallPayload `json:"tool_calls,omitempty"`
}

// ChoiceEvent 描述一个已完成候选的事件内容。
type ChoiceEvent struct {
	Index        int
	FinishReason *string
	Role         *llm.Role
	Content      *string
	ToolCalls    []llm.ToolCall
}

// Sanitize 在未开启内容记录时用占位符替换正文；nil 保持 nil。
func Sanitize(content *string, recordContent bool) *string {
	if content == nil {
		return nil
	}
	if !recordContent {
		redacted := RedactedContent
		return &redacted
	}
	v := *content
	return &v
}

// RecordPrompt 记录 completions 请求中的一个 prompt。
func RecordPrompt(sink EventSink, prompt string, recordContent bool) {
	emit(sink, EventUserMessage, contentPayload{Content: Sanitize(&prompt, recordContent)})
}

// RecordRequestMessage 按角色记录 chat 请求中的一条消息。
func RecordRequestMessage(sink EventSink, msg llm.Message, recordContent bool) {
	switch msg.Role {
	case llm.RoleSystem:
		emit(sink, EventSystemMessage, contentPayload{Content: Sanitize(msg.Content, recordContent)})
	case llm.RoleUser:
		emit(sink, EventUserMessage, userMessagePayload{Content: sanitizedUserContent(msg, recordContent)})
	case llm.RoleTool:
		emit(sink, EventToolMessage, toolMessagePayload{
			Content:    Sanitize(msg.Content, recordContent),
			ToolCallID: msg.ToolCallID,
		})
	case llm.RoleFunction:
		emit(sink, EventFunctionMessage, contentPayload{Content: Sanitize(msg.Content, recordContent)})
	case llm.RoleAssistant:
		emit(sink, EventAssistantMessage, assistantMessagePayload{
			Content:   Sanitize(msg.Content, recordContent),
			ToolCalls: sanitizedToolCalls(msg.ToolCalls, recordContent),
		})
	default:
		emit(sink, eventGenericMessage, contentPayload{Content: Sanitize(msg.Content, recordContent)})
	}
}

// RecordChoice 记录一个候选的最终结果。
func RecordChoice(sink EventSink, c ChoiceEvent, recordContent bool) {
	var role *string
	if c.Role != nil {
		r := string(*c.Role)
		role = &r
	}
	emit(sink, EventChoice, choicePayload{
		Index:        c.Index,
		FinishReason: c.FinishReason,
		Message: choiceMessagePayload{
			Role:      role,
			Content:   Sanitize(c.Content, recordContent),
			ToolCalls: sanitizedToolCalls(c.ToolCalls, recordContent),
		},
	})
}

func sanitizedUserContent(msg llm.Message, recordContent bool) any {
	if msg.Content != nil {
		return *Sanitize(msg.Content, recordContent)
	}
	if len(msg.Parts) == 0 {
		return nil
	}
	parts := make([]contentPartPayload, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch p.Type {
		case llm.ContentPartText:
			text := p.Text
			parts = append(parts, contentPartPayload{Type: "text", Content: Sanitize(&text, recordContent)})
		case llm.ContentPartImage:
			var url *string
			if p.ImageURL != "" {
				u := p.ImageURL
				url = &u
			}
			parts = append(parts, contentPartPayload{
				Type:        "image",
				DetailLevel: p.ImageDetail,
				Content:     Sanitize(url, recordContent),
			})
		}
	}
	return parts
}

func sanitizedToolCalls(calls []llm.ToolCall, recordContent bool) []toolCallPayload {
	if len(calls) == 0 {
		return nil
	}
	out := make([]toolCallPayload, 0, len(calls))
	for _, c := range calls {
		tc := toolCallPayload{ID: c.ID, Type: c.Type}
		if c.Type == "" || c.Type == "function" {
			var args *string
			if len(c.Arguments) > 0 {
				a := string(c.Arguments)
				args = &a
			}
			tc.Function = &functionPayload{Name: c.Name, Arguments: Sanitize(args, recordContent)}
		}
		out = append(out, tc)
	}
	return out
}

func emit(sink EventSink, name string, payload any) {
	if sink == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	sink.AddEvent(name, trace.WithAttributes(
		attribute.String(AttrEventData, string(data)),
		attribute.String(AttrGenAISystem, SystemOpenAI),
	))
}
