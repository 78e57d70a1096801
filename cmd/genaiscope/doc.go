// 版权所有 2024 GenAIScope Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 GenAIScope 命令行程序入口。

# 概述

cmd/genaiscope 调用 OpenAI 兼容接口的 chat.completions 与 completions，
每次调用都经过 llm/observability 的 OperationScope / StreamAggregator，
产出 span、gen_ai.* 诊断事件和 OTel 指标；传输层计数写入 Prometheus registry。

# 主要能力

  - 子命令：chat、complete、version
  - 配置：YAML 文件 + GENAISCOPE_* 环境变量，启动前校验
  - 遥测：internal/telemetry 按配置选择 stdout / OTLP gRPC / OTLP HTTP 导出器
  - Metrics：metrics.enabled 时在独立端口暴露 /metrics，与命令一起由 errgroup 管理
  - 退出：SIGINT / SIGTERM 取消请求，流被记为 cancelled，随后刷新 providers
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
