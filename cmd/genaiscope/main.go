// =============================================================================
// GenAIScope 主入口
// =============================================================================
// 命令行客户端：调用 OpenAI chat.completions / completions，并产出
// OpenTelemetry span、gen_ai.* 指标和 Prometheus 传输层指标
//
// 使用方法:
//
//	genaiscope chat --prompt "hello"                 # 非流式对话
//	genaiscope chat --prompt "hello" --stream --n 2  # 流式，两个候选
//	genaiscope complete --prompt "Once upon a time"  # legacy completions
//	genaiscope version                               # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/genaiscope/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 分发子命令并返回进程退出码。
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "chat":
		return runCommand(ctx, commandChat, args[1:], stdin, stdout, stderr)
	case "complete":
		return runCommand(ctx, commandComplete, args[1:], stdin, stdout, stderr)
	case "version":
		printVersion(stdout)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 2
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "GenAIScope %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `GenAIScope - instrumented OpenAI client

Usage:
  genaiscope <command> [options]

Commands:
  chat      Run a chat completion
  complete  Run a legacy text completion
  version   Show version information
  help      Show this help message

Options for 'chat' and 'complete':
  --config <path>     Path to configuration file (YAML)
  --prompt <text>     Prompt text; read from stdin when empty or "-"
  --system <text>     System message (chat only)
  --model <name>      Override client.model
  --n <count>         Number of choices per prompt
  --max-tokens <n>    Upper bound on generated tokens
  --stream            Stream the response over SSE

Examples:
  genaiscope chat --prompt "Say hi" --stream
  GENAISCOPE_TELEMETRY_ENABLED=true genaiscope complete --prompt "2+2=" --n 3
  genaiscope version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
