package llm

import "context"

type apiKeyOverrideKey struct{}

// WithAPIKey 在 ctx 中写入单次请求使用的 API Key，覆盖客户端配置。
// 空字符串不会改变 ctx。
func WithAPIKey(ctx context.Context, apiKey string) context.Context {
	if apiKey == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyOverrideKey{}, apiKey)
}

// APIKeyFromContext 从 ctx 读取 API Key 覆盖值。
func APIKeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(apiKeyOverrideKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
