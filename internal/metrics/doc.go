// 版权所有 2024 GenAIScope Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的传输层指标采集能力。

# 概述

Collector 通过 promauto.With 注册到调用方提供的 Registerer，
所有指标按 namespace 隔离。GenAI 语义约定指标由 llm/observability
通过 OpenTelemetry 上报，本包只覆盖 HTTP 往返与 SSE 分片。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求体大小，按 operation/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 流指标：分片计数、流错误计数（按 error_type）、活跃流 Gauge。
*/
package metrics
