package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/BaSui01/genaiscope/llm"
	"go.uber.org/zap"
)

// Policy 定义重试策略配置
type Policy struct {
	MaxRetries   int                                               // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration                                     // 初始延迟时间
	MaxDelay     time.Duration                                     // 最大延迟时间
	Multiplier   float64                                           // 延迟时间倍增因子（指数退避）
	Jitter       bool                                              // 是否添加 ±25% 随机抖动
	Retryable    func(error) bool                                  // 判断错误是否可重试，nil 时使用 IsRetryable
	OnRetry      func(attempt int, err error, delay time.Duration) // 重试回调
}

// DefaultPolicy 返回默认的重试策略，适用于 OpenAI 接口调用
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// normalized 补齐非法或缺省的参数
func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 500 * time.Millisecond
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	if p.Retryable == nil {
		p.Retryable = IsRetryable
	}
	return p
}

// IsRetryable 是默认的可重试判断：
// 取消与超时不重试；*llm.Error 按 Retryable 标记；网络层 *net.OpError 可重试。
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Do 执行 fn，失败且可重试时按指数退避重试。
// 重试耗尽或遇到不可重试错误时原样返回最后一次的错误；
// 等待期间 ctx 结束则返回包装了 ctx.Err() 的错误。
func Do[T any](ctx context.Context, policy Policy, logger *zap.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	p := policy.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt)
			logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", p.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Debug("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !p.Retryable(err) {
			return zero, err
		}
	}

	logger.Warn("retries exhausted",
		zap.Int("attempts", p.MaxRetries+1),
		zap.Error(lastErr),
	)
	return zero, lastErr
}

// delay 计算第 attempt 次重试前的等待：initial * multiplier^(attempt-1)，上限 MaxDelay
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	if p.Jitter {
		jitter := d * 0.25
		d += (rand.Float64()*2 - 1) * jitter
	}

	if d < float64(p.InitialDelay) {
		d = float64(p.InitialDelay)
	}
	return time.Duration(d)
}
