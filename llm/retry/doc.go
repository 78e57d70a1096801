// 版权所有 2024 GenAIScope Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package retry 提供指数退避重试。OpenAI 客户端用它重试可恢复的
// 上游错误（429、5xx、网络错误），整个重试过程位于同一个 OperationScope 之内。
package retry
