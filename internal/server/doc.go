// 版权所有 2024 GenAIScope Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 CLI 在命令执行期间暴露的后台 HTTP 服务，
目前用于 Prometheus /metrics 端点。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/Errors/Addr/IsRunning。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与优雅关闭超时。

# 主要能力

  - 同步绑定：Start 先完成 net.Listen，端口冲突立即返回错误；
    ":0" 监听时可通过 Addr 取得实际端口。
  - 错误传播：Errors() 返回运行期间的异步错误。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空，重复调用为空操作。
*/
package server
