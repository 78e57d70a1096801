package openai

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/genaiscope/llm"
	"github.com/BaSui01/genaiscope/llm/observability"
	"go.uber.org/zap"
)

// decodeFunc converts the payload of one SSE data line into chunks.
type decodeFunc func(data []byte) ([]llm.StreamChunk, error)

// streamSSE parses an OpenAI SSE stream in a goroutine. Each decoded chunk is
// recorded on agg before it is forwarded on the returned channel. The
// aggregator is always finalized when the goroutine exits:
//   - ctx cancelled: RecordCancellation
//   - read or decode failure: RecordException, then an error chunk
//   - "[DONE]" or EOF: Dispose
func (c *Client) streamSSE(ctx context.Context, operation string, body io.ReadCloser, agg *observability.StreamAggregator, decode decodeFunc) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk)
	if c.collector != nil {
		c.collector.StreamOpened(operation)
	}

	go func() {
		defer body.Close()
		defer close(ch)
		defer agg.Dispose()
		if c.collector != nil {
			defer c.collector.StreamClosed(operation)
		}

		fail := func(err error, apiErr *llm.Error) {
			if canceled(ctx, err) {
				c.cancel(operation, agg)
				return
			}
			agg.RecordException(err)
			c.recordStreamError(operation, err)
			select {
			case <-ctx.Done():
			case ch <- llm.StreamChunk{Err: apiErr}:
			}
		}

		reader := bufio.NewReader(body)
		for {
			line, readErr := reader.ReadString('\n')
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "data:") {
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if data == "[DONE]" {
					return
				}

				chunks, err := decode([]byte(data))
				if err != nil {
					var apiErr *llm.Error
					if !errors.As(err, &apiErr) {
						apiErr = &llm.Error{
							Code: llm.ErrStreamDecode, Message: err.Error(),
							HTTPStatus: http.StatusBadGateway,
						}
					}
					c.logger.Warn("stream terminated by upstream payload",
						zap.String("operation", operation),
						zap.Error(err))
					fail(err, apiErr)
					return
				}

				for _, chunk := range chunks {
					if err := agg.RecordChunk(chunk); err != nil {
						c.logger.Warn("chunk not recorded", zap.String("operation", operation), zap.Error(err))
					}
					if c.collector != nil {
						c.collector.RecordStreamChunk(operation)
					}
					select {
					case <-ctx.Done():
						c.cancel(operation, agg)
						return
					case ch <- chunk:
					}
				}
			}

			if readErr != nil {
				if readErr == io.EOF {
					return
				}
				fail(readErr, &llm.Error{
					Code: llm.ErrUpstreamError, Message: readErr.Error(),
					HTTPStatus: http.StatusBadGateway, Retryable: true,
				})
				return
			}
		}
	}()
	return ch
}

func (c *Client) cancel(operation string, agg *observability.StreamAggregator) {
	agg.RecordCancellation()
	if c.collector != nil {
		c.collector.RecordStreamError(operation, observability.ErrorTypeCancelled)
	}
}

func (c *Client) recordStreamError(operation string, err error) {
	if c.collector == nil {
		return
	}
	if et := observability.ErrorType(err, false); et != nil {
		c.collector.RecordStreamError(operation, *et)
	}
}
