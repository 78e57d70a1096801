package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/genaiscope/llm"
	"go.uber.org/zap"
)

var (
	// ErrInvalidChoiceCount 期望的候选数小于 1。
	ErrInvalidChoiceCount = errors.New("observability: choice count must be at least 1")
	// ErrChoiceIndexOutOfRange 增量引用了不存在的候选序号。
	ErrChoiceIndexOutOfRange = errors.New("observability: choice index out of range")
)

// StreamAggregator 汇总一次流式操作中 N 个候选的增量，并在所有候选终结、
// 流出错、被取消或被释放时完成且只完成一次收尾。
type StreamAggregator struct {
	ctx     context.Context
	scope   *OperationScope
	choices []*ChoiceAccumulator
	sink    EventSink
	logger  *zap.Logger

	mu         sync.Mutex
	responseID *string
	model      *string

	done atomic.Bool
}

// NewStreamAggregator 为已 Start 的 scope 创建聚合器，并立即记录一次流开始。
// ctx 应为 scope.Start 返回的上下文。
func NewStreamAggregator(ctx context.Context, scope *OperationScope, n int) (*StreamAggregator, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChoiceCount, n)
	}
	if scope == nil {
		return nil, errors.New("observability: nil operation scope")
	}

	a := &StreamAggregator{
		// 取消信号不应影响收尾阶段的指标上报
		ctx:    context.WithoutCancel(ctx),
		scope:  scope,
		logger: scope.logger.With(zap.String("component", "stream_aggregator")),
	}
	if scope.IsRecording() && scope.RecordEvents() {
		a.sink = scope.Span()
	}

	a.choices = make([]*ChoiceAccumulator, n)
	for i := range a.choices {
		a.choices[i] = NewChoiceAccumulator(i, scope.RecordContent(), a.logger)
	}

	scope.RecordStreamStart(a.ctx)
	return a, nil
}

// RecordChunk 按增量类型分发到对应候选。所有候选终结后触发收尾。
// 越界的候选序号返回 ErrChoiceIndexOutOfRange，该增量被丢弃，流可以继续。
func (a *StreamAggregator) RecordChunk(chunk llm.StreamChunk) error {
	if a.done.Load() {
		a.logger.Debug("dropping chunk after stream finalized", zap.Stringer("kind", chunk.Kind))
		return nil
	}

	var err error
	switch chunk.Kind {
	case llm.ChunkKindChat:
		err = a.recordChatDelta(chunk.Chat)
	case llm.ChunkKindCompletions:
		err = a.recordCompletionsDelta(chunk.Completions)
	default:
		a.logger.Debug("ignoring chunk of unknown kind", zap.Stringer("kind", chunk.Kind))
	}

	if a.allFinalized() {
		a.endScope(nil, false)
	}
	return err
}

func (a *StreamAggregator) recordChatDelta(d *llm.ChatDelta) error {
	if d == nil {
		return nil
	}
	a.captureIdentity(d.ID, d.Model)
	if d.ChoiceIndex == nil {
		return nil
	}
	return a.dispatch(*d.ChoiceIndex, ChoiceDelta{
		Role:         d.Role,
		Content:      d.Content,
		FinishReason: d.FinishReason,
	})
}

func (a *StreamAggregator) recordCompletionsDelta(d *llm.CompletionsDelta) error {
	if d == nil {
		return nil
	}
	a.captureIdentity(d.ID, d.Model)

	var errs []error
	for _, c := range d.Choices {
		if err := a.dispatch(c.Index, ChoiceDelta{
			Content:      c.Text,
			FinishReason: c.FinishReason,
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *StreamAggregator) dispatch(index int, d ChoiceDelta) error {
	if index < 0 || index >= len(a.choices) {
		a.logger.Warn("dropping chunk with out-of-range choice index",
			zap.Int("choice_index", index),
			zap.Int("choices", len(a.choices)))
		return fmt.Errorf("%w: %d not in [0, %d)", ErrChoiceIndexOutOfRange, index, len(a.choices))
	}

	choice := a.choices[index]
	if !choice.AddChunk(d) {
		return nil
	}
	if d.FinishReason != nil {
		choice.Finalize(a.sink)
	}
	return nil
}

// captureIdentity 记录首次出现的响应 id 与模型。
func (a *StreamAggregator) captureIdentity(id, model *string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.responseID == nil && id != nil && *id != "" {
		v := *id
		a.responseID = &v
	}
	if a.model == nil && model != nil && *model != "" {
		v := *model
		a.model = &v
	}
}

func (a *StreamAggregator) allFinalized() bool {
	for _, c := range a.choices {
		if !c.Finalized() {
			return false
		}
	}
	return true
}

// RecordException 以错误结束流。
func (a *StreamAggregator) RecordException(err error) {
	a.endScope(err, false)
}

// RecordCancellation 以取消结束流。
func (a *StreamAggregator) RecordCancellation() {
	a.endScope(nil, true)
}

// Dispose 结束流；若已结束则无效果。
func (a *StreamAggregator) Dispose() {
	a.endScope(nil, false)
}

// Finalized 报告收尾是否已经发生。
func (a *StreamAggregator) Finalized() bool { return a.done.Load() }

// Choice 返回第 i 个候选的快照。
func (a *StreamAggregator) Choice(i int) (ChoiceState, bool) {
	if i < 0 || i >= len(a.choices) {
		return ChoiceState{}, false
	}
	return a.choices[i].Snapshot(), true
}

// NumChoices 返回候选数。
func (a *StreamAggregator) NumChoices() int { return len(a.choices) }

func (a *StreamAggregator) endScope(err error, canceled bool) {
	if !a.done.CompareAndSwap(false, true) {
		return
	}

	a.scope.RecordStreamComplete(a.ctx)

	firstFinishReason := a.choices[0].FinishReason()
	total := 0
	for _, c := range a.choices {
		c.Finalize(a.sink)
		total += c.TokenCount()
	}

	a.mu.Lock()
	id, model := a.responseID, a.model
	a.mu.Unlock()

	a.scope.RecordStreamingResponse(a.ctx, StreamResult{
		ResponseID:       id,
		Model:            model,
		FinishReason:     firstFinishReason,
		CompletionTokens: &total,
		Err:              err,
		Canceled:         canceled,
	})
	a.scope.Dispose()

	a.logger.Debug("stream finalized",
		zap.Int("choices", len(a.choices)),
		zap.Int("completion_tokens", total),
		zap.Bool("canceled", canceled),
		zap.Error(err))
}
