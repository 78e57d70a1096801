// 版权所有 2024 GenAIScope Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 为 OpenAI 风格的 LLM 调用提供遵循 GenAI 语义约定的
追踪、指标与诊断事件。

# 概述

每次请求对应一个 OperationScope：Start 开启 client span 并记录请求属性，
响应或失败时写入响应属性并上报耗时与 token 直方图，最后 Dispose 结束 span。
指标上报与 span 是否被采样无关；属性写入只在 span 被采样时进行。

流式请求额外由 StreamAggregator 管理：它为 N 个候选各建一个
ChoiceAccumulator，按增量类型分发分片，在全部候选终结、出错、取消或
释放时通过原子标志只收尾一次。

# 核心接口

  - MetricRecorder：由显式注入的 MeterProvider 创建的进程级仪表，
    包括 gen_ai.operation.duration、gen_ai.token.usage、
    gen_ai.stream.start 与 gen_ai.stream.end。
  - TagSet：有序指标维度，With 返回独立副本。
  - OperationScope：单次请求的生命周期。
  - ChoiceAccumulator：单个候选的增量拼装与 gen_ai.choice 事件。
  - StreamAggregator：多候选流的收尾协调。
  - Diagnostics：按端点创建上述 scope 的工厂。

# 内容脱敏

未开启 RecordContent 时，事件中的正文一律替换为 REDACTED，
流式正文也不会被缓冲。
*/
package observability
