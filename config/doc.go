// 版权所有 2024 GenAIScope Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package config 提供 GenAIScope 的配置加载。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 GENAISCOPE）的顺序合并，
// 覆盖客户端、日志、OpenTelemetry 遥测和 Prometheus 指标四个部分。
package config
