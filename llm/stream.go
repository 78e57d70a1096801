package llm

// ChunkKind 区分流式分片的两种载荷。
type ChunkKind int

const (
	ChunkKindChat ChunkKind = iota + 1
	ChunkKindCompletions
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkKindChat:
		return "chat"
	case ChunkKindCompletions:
		return "completions"
	default:
		return "unknown"
	}
}

// ChatDelta 是 chat.completions 流中的一个增量。
// ID 与 Model 通常只出现在前几个分片上。
type ChatDelta struct {
	ID           *string `json:"id,omitempty"`
	Model        *string `json:"model,omitempty"`
	ChoiceIndex  *int    `json:"choice_index,omitempty"`
	Role         *Role   `json:"role,omitempty"`
	Content      *string `json:"content,omitempty"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// CompletionsChoiceDelta 是 completions 流中单个候选的增量。
type CompletionsChoiceDelta struct {
	Index        int     `json:"index"`
	Text         *string `json:"text,omitempty"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// CompletionsDelta 是 completions 流中的一个分片，可同时携带多个候选。
type CompletionsDelta struct {
	ID      *string                  `json:"id,omitempty"`
	Model   *string                  `json:"model,omitempty"`
	Choices []CompletionsChoiceDelta `json:"choices"`
}

// StreamChunk 流式响应分片，按 Kind 区分载荷。
// Err 非空时表示流因传输错误终止，此时 Kind 为零值。
type StreamChunk struct {
	Kind        ChunkKind         `json:"kind"`
	Chat        *ChatDelta        `json:"chat,omitempty"`
	Completions *CompletionsDelta `json:"completions,omitempty"`
	Err         *Error            `json:"error,omitempty"`
}

// NewChatChunk 包装 chat 增量。
func NewChatChunk(d ChatDelta) StreamChunk {
	return StreamChunk{Kind: ChunkKindChat, Chat: &d}
}

// NewCompletionsChunk 包装 completions 增量。
func NewCompletionsChunk(d CompletionsDelta) StreamChunk {
	return StreamChunk{Kind: ChunkKindCompletions, Completions: &d}
}
