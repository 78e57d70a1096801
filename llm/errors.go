package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 *Error。
// serviceCode 为服务端返回的 error.code，原样保留。
func MapHTTPError(status int, msg, serviceCode string) *Error {
	e := &Error{
		Message:     msg,
		HTTPStatus:  status,
		ServiceCode: serviceCode,
	}
	switch status {
	case http.StatusUnauthorized:
		e.Code = ErrUnauthorized
	case http.StatusForbidden:
		e.Code = ErrForbidden
	case http.StatusNotFound:
		e.Code = ErrNotFound
	case http.StatusTooManyRequests:
		e.Code = ErrRateLimited
		e.Retryable = true
	case http.StatusBadRequest:
		// 检查配额关键字
		msgLower := strings.ToLower(msg)
		if strings.Contains(msgLower, "quota") || strings.Contains(msgLower, "credit") {
			e.Code = ErrQuotaExceeded
		} else {
			e.Code = ErrInvalidRequest
		}
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		e.Code = ErrUpstreamTimeout
		e.Retryable = true
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		e.Code = ErrUpstreamError
		e.Retryable = true
	case 529: // Model overloaded (used by some providers)
		e.Code = ErrModelOverloaded
		e.Retryable = true
	default:
		e.Code = ErrUpstreamError
		e.Retryable = status >= 500
	}
	return e
}

// ReadError 读取错误响应体并构造 *Error。
// 尝试解析 OpenAI 风格的 {"error": {...}}，失败则回退到原始文本。
func ReadError(status int, body io.Reader) *Error {
	data, err := io.ReadAll(body)
	if err != nil {
		return MapHTTPError(status, "failed to read error response", "")
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return ServiceError(status, errResp.Error.Message, errResp.Error.Type, errResp.Error.Code)
	}

	return MapHTTPError(status, strings.TrimSpace(string(data)), "")
}

// ServiceError 由服务端错误对象的各字段构造 *Error。code 可以是字符串、数字或 nil。
func ServiceError(status int, message, errType string, code any) *Error {
	if errType != "" {
		message = fmt.Sprintf("%s (type: %s)", message, errType)
	}
	return MapHTTPError(status, message, serviceCode(code))
}

// serviceCode 规范化 error.code：部分服务返回数字或 null。
func serviceCode(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return fmt.Sprintf("%d", int64(c))
	default:
		return ""
	}
}
