// Copyright 2026 GenAIScope Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 openai 提供带 GenAI 可观测性的 OpenAI HTTP 客户端，覆盖
Chat Completions（/chat/completions）与传统 Completions（/completions）
两个接口的流式与非流式调用。

# 核心结构体

  - Client：每次调用都在 observability.OperationScope 中执行；
    流式调用将每个 SSE 分片先交给 observability.StreamAggregator，再转发给调用方

# 支持能力

  - 非流式：失败时记录 error.type 后原样返回错误
  - 流式（SSE）：取消 → RecordCancellation，读取/解析失败 → RecordException
    并发送错误分片，正常结束 → Dispose
  - 流中途的 {"error": {...}} 事件转换为带服务端错误码的 *llm.Error
  - X-Request-ID（uuid）、OpenAI-Organization header
  - 客户端限流（golang.org/x/time/rate）
  - 429、5xx 与网络错误按 llm/retry 指数退避重试，重试发生在同一个 scope 内
  - 可选的 Prometheus 传输层指标（internal/metrics）
  - llm.WithAPIKey 运行时凭证覆盖
*/
package openai
