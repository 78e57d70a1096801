// 版权所有 2024 GenAIScope Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义 OpenAI 兼容接口的请求、响应与流式分片模型，
以及上游错误到统一错误类型的映射。

# 核心类型

  - [ChatRequest] / [ChatResponse]：Chat Completions 请求与响应
  - [CompletionsRequest] / [CompletionsResponse]：旧版 Completions 请求与响应
  - [Message] / [ContentPart] / [ToolCall]：对话消息与多模态内容
  - [StreamChunk]：流式分片，按 [ChunkKind] 区分 chat 与 completions
  - [Usage]：token 用量
  - [Error]：统一错误，携带 HTTP 状态、服务端错误码与是否可重试

# 错误映射

[MapHTTPError]、[ReadError] 与 [ServiceError] 将上游 HTTP 状态和错误体
转换为 [*Error]。ServiceCode 保留服务端返回的 code 字段，遥测用它作为
error.type 的取值。

# 凭据覆盖

[WithAPIKey] 通过 context 为单次请求覆盖 API Key，[APIKeyFromContext]
在发送请求时读取。

# 辅助函数

  - [FirstChoice] / [FirstFinishReason]：读取首个 choice
  - [ChoiceCount]：按 n 与 prompt 数量计算预期 choice 数
  - [Ptr]：取任意值的指针，便于构造可选字段
*/
package llm
