package observability

import (
	"strings"
	"sync"

	"github.com/BaSui01/genaiscope/llm"
	"go.uber.org/zap"
)

// ChoiceDelta 是路由到单个候选的增量。
type ChoiceDelta struct {
	Role         *llm.Role
	Content      *string
	FinishReason *string
}

// ChoiceState 是 ChoiceAccumulator 的只读快照。
type ChoiceState struct {
	Index        int
	Role         *llm.Role
	Content      *string // 未开启内容记录时恒为 nil
	FinishReason *string
	TokenCount   int
	Finalized    bool
}

// ChoiceAccumulator 将一个候选的流式增量拼装为最终结果。
// 收到 finish reason 或被 Finalize 之后，后续增量一律丢弃。
type ChoiceAccumulator struct {
	index         int
	recordContent bool
	logger        *zap.Logger

	mu           sync.Mutex
	role         *llm.Role
	content      *strings.Builder
	tokenCount   int
	finishReason *string
	finalized    bool
}

// NewChoiceAccumulator 创建第 index 个候选的缓冲区。
// 未开启内容记录时不分配内容缓冲，正文不会被保留。
func NewChoiceAccumulator(index int, recordContent bool, logger *zap.Logger) *ChoiceAccumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ChoiceAccumulator{
		index:         index,
		recordContent: recordContent,
		logger:        logger,
	}
	if recordContent {
		c.content = &strings.Builder{}
	}
	return c
}

// Index 返回候选序号。
func (c *ChoiceAccumulator) Index() int { return c.index }

// AddChunk 合并一个增量。候选已终结时返回 false。
func (c *ChoiceAccumulator) AddChunk(d ChoiceDelta) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finishReason != nil || c.finalized {
		c.logger.Debug("dropping chunk for terminated choice",
			zap.Int("choice_index", c.index),
			zap.Bool("finalized", c.finalized))
		return false
	}

	if d.Role != nil {
		role := *d.Role
		c.role = &role
	}

	if d.Content != nil && *d.Content != "" {
		c.tokenCount++
		if c.content != nil {
			c.content.WriteString(*d.Content)
		}
	}

	if d.FinishReason != nil {
		reason := *d.FinishReason
		c.finishReason = &reason
	}
	return true
}

// Finalize 将候选标记为已完成，并向 sink 发出一次 gen_ai.choice 事件。
// 重复调用无效果并返回 false。sink 为 nil 时只做标记。
func (c *ChoiceAccumulator) Finalize(sink EventSink) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return false
	}
	c.finalized = true

	// 持锁发出事件：并发的 Finalize 返回时事件一定已经写入 sink
	if sink != nil {
		RecordChoice(sink, ChoiceEvent{
			Index:        c.index,
			FinishReason: c.finishReason,
			Role:         c.role,
			Content:      c.eventContentLocked(),
		}, c.recordContent)
	}
	return true
}

// Finalized 报告候选是否已完成。
func (c *ChoiceAccumulator) Finalized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalized
}

// FinishReason 返回 finish reason，未收到时为 nil。
func (c *ChoiceAccumulator) FinishReason() *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finishReason
}

// TokenCount 返回非空内容增量的个数。
func (c *ChoiceAccumulator) TokenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenCount
}

// Snapshot 返回当前状态。
func (c *ChoiceAccumulator) Snapshot() ChoiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ChoiceState{
		Index:        c.index,
		Role:         c.role,
		Content:      c.contentLocked(),
		FinishReason: c.finishReason,
		TokenCount:   c.tokenCount,
		Finalized:    c.finalized,
	}
}

// eventContentLocked 返回事件中的正文。未缓冲正文但收到过内容时返回空串，
// 由 Sanitize 替换为占位符。
func (c *ChoiceAccumulator) eventContentLocked() *string {
	if content := c.contentLocked(); content != nil {
		return content
	}
	if c.tokenCount > 0 {
		empty := ""
		return &empty
	}
	return nil
}

func (c *ChoiceAccumulator) contentLocked() *string {
	if c.content == nil {
		return nil
	}
	s := c.content.String()
	return &s
}
