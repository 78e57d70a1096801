package observability

// GenAI 语义约定：span 属性、指标维度与事件名称。

const (
	AttrGenAISystem           = "gen_ai.system"
	AttrGenAIOperationName    = "gen_ai.operation.name"
	AttrGenAIRequestModel     = "gen_ai.request.model"
	AttrGenAIRequestMaxTokens = "gen_ai.request.max_tokens" // #nosec G101 -- token refers to LLM tokens
	AttrGenAIRequestTemp      = "gen_ai.request.temperature"
	AttrGenAIRequestTopP      = "gen_ai.request.top_p"
	AttrGenAIResponseID       = "gen_ai.response.id"
	AttrGenAIResponseModel    = "gen_ai.response.model"
	AttrGenAIResponseFinish   = "gen_ai.response.finish_reason"
	AttrGenAIUsagePrompt      = "gen_ai.usage.prompt_tokens"     // #nosec G101
	AttrGenAIUsageCompletion  = "gen_ai.usage.completion_tokens" // #nosec G101
	AttrGenAITokenType        = "gen_ai.usage.token_type"        // #nosec G101
	AttrServerAddress         = "server.address"
	AttrServerPort            = "server.port"
	AttrErrorType             = "error.type"
	AttrEventData             = "event.data"
)

const (
	// SystemOpenAI 是 gen_ai.system 的取值。
	SystemOpenAI = "openai"

	OperationChatCompletions = "chat.completions"
	OperationCompletions     = "completions"

	TokenTypeInput  = "input"
	TokenTypeOutput = "output"

	// RedactedContent 替代未开启内容记录时的消息正文。
	RedactedContent = "REDACTED"

	// ErrorTypeCancelled 是取消操作时 error.type 的固定取值。
	ErrorTypeCancelled = "cancelled"
)

const (
	MetricOperationDuration = "gen_ai.operation.duration"
	MetricTokenUsage        = "gen_ai.token.usage" // #nosec G101
	MetricStreamStart       = "gen_ai.stream.start"
	MetricStreamEnd         = "gen_ai.stream.end"
)

const (
	EventSystemMessage    = "gen_ai.system.message"
	EventUserMessage      = "gen_ai.user.message"
	EventAssistantMessage = "gen_ai.assistant.message"
	EventToolMessage      = "gen_ai.tool.message"
	EventFunctionMessage  = "gen_ai.function.message"
	EventChoice           = "gen_ai.choice"
)
