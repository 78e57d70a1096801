package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/genaiscope/llm"
)

type commandKind int

const (
	commandChat commandKind = iota + 1
	commandComplete
)

func (k commandKind) String() string {
	if k == commandChat {
		return "chat"
	}
	return "complete"
}

// commandOptions 是 chat / complete 共用的命令行参数。
type commandOptions struct {
	configPath string
	prompt     string
	system     string
	model      string
	n          int
	maxTokens  int
	stream     bool
}

func parseCommandOptions(kind commandKind, args []string, stderr io.Writer) (*commandOptions, error) {
	fs := flag.NewFlagSet(kind.String(), flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &commandOptions{}
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.StringVar(&opts.prompt, "prompt", "", `Prompt text; read from stdin when empty or "-"`)
	fs.StringVar(&opts.model, "model", "", "Override client.model")
	fs.IntVar(&opts.n, "n", 0, "Number of choices per prompt")
	fs.IntVar(&opts.maxTokens, "max-tokens", 0, "Upper bound on generated tokens")
	fs.BoolVar(&opts.stream, "stream", false, "Stream the response over SSE")
	if kind == commandChat {
		fs.StringVar(&opts.system, "system", "", "System message")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.n < 0 {
		return nil, errors.New("--n must not be negative")
	}
	return opts, nil
}

func runCommand(ctx context.Context, kind commandKind, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseCommandOptions(kind, args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Invalid arguments: %v\n", err)
		return 2
	}

	if opts.prompt == "" || opts.prompt == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to read prompt: %v\n", err)
			return 1
		}
		opts.prompt = strings.TrimSpace(string(data))
	}
	if opts.prompt == "" {
		fmt.Fprintln(stderr, "A prompt is required")
		return 2
	}

	a, err := newApp(ctx, opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.close(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	err = a.execute(ctx, func(ctx context.Context) error {
		if kind == commandChat {
			return a.chat(ctx, opts, stdout)
		}
		return a.complete(ctx, opts, stdout)
	})
	if err != nil {
		a.logger.Debug("command failed", zap.String("command", kind.String()), zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (o *commandOptions) optionalN() *int {
	if o.n == 0 {
		return nil
	}
	return llm.Ptr(o.n)
}

func (o *commandOptions) optionalMaxTokens() *int {
	if o.maxTokens == 0 {
		return nil
	}
	return llm.Ptr(o.maxTokens)
}

func (a *app) modelFor(o *commandOptions) string {
	if o.model != "" {
		return o.model
	}
	return a.cfg.Client.Model
}

// =============================================================================
// chat
// =============================================================================

func (a *app) chat(ctx context.Context, o *commandOptions, out io.Writer) error {
	var messages []llm.Message
	if o.system != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: llm.Ptr(o.system)})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: llm.Ptr(o.prompt)})

	req := &llm.ChatRequest{
		Model:     a.modelFor(o),
		Messages:  messages,
		N:         o.optionalN(),
		MaxTokens: o.optionalMaxTokens(),
	}

	if !o.stream {
		resp, err := a.client.ChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		multi := len(resp.Choices) > 1
		for _, c := range resp.Choices {
			text := ""
			if c.Message.Content != nil {
				text = *c.Message.Content
			}
			writeChoice(out, multi, c.Index, text)
		}
		return nil
	}

	ch, err := a.client.StreamChatCompletion(ctx, req)
	if err != nil {
		return err
	}
	p := newStreamPrinter(out, llm.ChoiceCount(req.N, 1) > 1)
	for chunk := range ch {
		if chunk.Err != nil {
			return chunk.Err
		}
		d := chunk.Chat
		if d == nil || d.ChoiceIndex == nil || d.Content == nil {
			continue
		}
		p.write(*d.ChoiceIndex, *d.Content)
	}
	p.finish()
	return ctx.Err()
}

// =============================================================================
// complete
// =============================================================================

func (a *app) complete(ctx context.Context, o *commandOptions, out io.Writer) error {
	req := &llm.CompletionsRequest{
		Model:     a.modelFor(o),
		Prompts:   []string{o.prompt},
		N:         o.optionalN(),
		MaxTokens: o.optionalMaxTokens(),
	}

	if !o.stream {
		resp, err := a.client.Completion(ctx, req)
		if err != nil {
			return err
		}
		multi := len(resp.Choices) > 1
		for _, c := range resp.Choices {
			writeChoice(out, multi, c.Index, c.Text)
		}
		return nil
	}

	ch, err := a.client.StreamCompletion(ctx, req)
	if err != nil {
		return err
	}
	p := newStreamPrinter(out, llm.ChoiceCount(req.N, len(req.Prompts)) > 1)
	for chunk := range ch {
		if chunk.Err != nil {
			return chunk.Err
		}
		if chunk.Completions == nil {
			continue
		}
		for _, c := range chunk.Completions.Choices {
			if c.Text != nil {
				p.write(c.Index, *c.Text)
			}
		}
	}
	p.finish()
	return ctx.Err()
}

// =============================================================================
// 输出
// =============================================================================

func writeChoice(out io.Writer, multi bool, index int, text string) {
	if multi {
		fmt.Fprintf(out, "[%d] %s\n", index, text)
		return
	}
	fmt.Fprintln(out, text)
}

// streamPrinter 输出流式文本。单候选时原样拼接；多候选时每个片段单独一行并带上候选下标。
type streamPrinter struct {
	out   io.Writer
	multi bool
	wrote bool
}

func newStreamPrinter(out io.Writer, multi bool) *streamPrinter {
	return &streamPrinter{out: out, multi: multi}
}

func (p *streamPrinter) write(index int, text string) {
	p.wrote = true
	if p.multi {
		fmt.Fprintf(p.out, "[%d] %s\n", index, text)
		return
	}
	fmt.Fprint(p.out, text)
}

func (p *streamPrinter) finish() {
	if p.wrote && !p.multi {
		fmt.Fprintln(p.out)
	}
}
