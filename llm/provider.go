package llm

import (
	"encoding/json"
	"time"
)

// 统一的 LLM 错误码，用于对齐 HTTP 状态与可重试性。
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "LLM_INVALID_REQUEST"  // 参数/格式错误
	ErrUnauthorized    ErrorCode = "LLM_UNAUTHORIZED"     // 未授权或密钥失效
	ErrForbidden       ErrorCode = "LLM_FORBIDDEN"        // 权限或内容策略拒绝
	ErrNotFound        ErrorCode = "LLM_NOT_FOUND"        // 模型或部署不存在
	ErrRateLimited     ErrorCode = "LLM_RATE_LIMITED"     // 上游或本地限流
	ErrQuotaExceeded   ErrorCode = "LLM_QUOTA_EXCEEDED"   // 额度/配额用尽
	ErrModelOverloaded ErrorCode = "LLM_MODEL_OVERLOADED" // 模型过载
	ErrUpstreamTimeout ErrorCode = "LLM_UPSTREAM_TIMEOUT" // 上游超时
	ErrUpstreamError   ErrorCode = "LLM_UPSTREAM_ERROR"   // 上游 5xx/网络错误
	ErrStreamDecode    ErrorCode = "LLM_STREAM_DECODE"    // SSE 数据无法解析
)

// Error 是服务端返回或传输层产生的错误。
// ServiceCode 保存服务端 error.code 原值（如 "rate_limit_exceeded"），为空表示服务端未提供。
type Error struct {
	Code        ErrorCode `json:"code"`
	ServiceCode string    `json:"service_code,omitempty"`
	Message     string    `json:"message"`
	HTTPStatus  int       `json:"http_status"`
	Retryable   bool      `json:"retryable"`
}

func (e *Error) Error() string { return e.Message }

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleFunction  Role = "function"
)

type ToolCall struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ContentPartType 多模态内容片段类型
type ContentPartType string

const (
	ContentPartText  ContentPartType = "text"
	ContentPartImage ContentPartType = "image"
)

// ContentPart 是用户消息中的一个多模态片段。
type ContentPart struct {
	Type        ContentPartType `json:"type"`
	Text        string          `json:"text,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	ImageDetail string          `json:"image_detail,omitempty"` // auto/low/high
}

// Message 请求或响应中的一条消息。
// Content 为 nil 表示消息没有文本内容（例如只有 ToolCalls 的 assistant 消息）。
type Message struct {
	Role       Role          `json:"role"`
	Content    *string       `json:"content,omitempty"`
	Parts      []ContentPart `json:"parts,omitempty"`
	Name       string        `json:"name,omitempty"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"` // 工具返回时标识对应调用
}

// ChatRequest 聊天补全请求。可选参数使用指针，nil 表示未设置。
type ChatRequest struct {
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	N           *int              `json:"n,omitempty"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	User        string            `json:"user,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CompletionsRequest 文本补全请求（legacy completions 接口）。
type CompletionsRequest struct {
	Model       string   `json:"model"`
	Prompts     []string `json:"prompts"`
	N           *int     `json:"n,omitempty"` // 每个 prompt 的候选数
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	User        string   `json:"user,omitempty"`
}

// Usage token 用量；服务端未返回的字段保持 nil。
type Usage struct {
	PromptTokens     *int `json:"prompt_tokens,omitempty"`
	CompletionTokens *int `json:"completion_tokens,omitempty"`
	TotalTokens      *int `json:"total_tokens,omitempty"`
}

type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason *string `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     *Usage       `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

type CompletionsChoice struct {
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

type CompletionsResponse struct {
	ID        string              `json:"id,omitempty"`
	Model     string              `json:"model"`
	Choices   []CompletionsChoice `json:"choices"`
	Usage     *Usage              `json:"usage,omitempty"`
	CreatedAt time.Time           `json:"created_at,omitempty"`
}

// Ptr 返回 v 的指针，用于构造可选字段。
func Ptr[T any](v T) *T { return &v }
