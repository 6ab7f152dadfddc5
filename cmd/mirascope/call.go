package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

type callOptions struct {
	providers []string
	model     string
	template  string
	args      map[string]string
	stream    bool
}

// callOutcome 是一个 provider 的调用结果
type callOutcome struct {
	target  target
	content string
	usage   *schema.Usage
	cost    *float64
}

func newCallCmd(a *app) *cobra.Command {
	o := &callOptions{}
	cmd := &cobra.Command{
		Use:   "call [PROMPT]",
		Short: "渲染提示模板并调用一个或多个 provider",
		Example: `  mirascope call -p openai "Recommend a fantasy book"
  mirascope call -p openai,anthropic -t "Recommend a {genre} book" --arg genre=fantasy
  mirascope call -p groq --stream "Tell me a story"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if o.template != "" {
					return errors.New("pass the prompt either as an argument or with --template, not both")
				}
				o.template = args[0]
			}
			if strings.TrimSpace(o.template) == "" {
				return errors.New("a prompt is required")
			}
			return a.runCall(cmd.Context(), o)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&o.providers, "provider", "p", nil, "provider 列表，逗号分隔 (默认取配置中的 default_provider)")
	f.StringVarP(&o.model, "model", "m", "", "模型名，为空时使用 provider 的默认模型")
	f.StringVarP(&o.template, "template", "t", "", "提示模板，支持 {name} 占位符与 SYSTEM:/USER: 角色标记")
	f.StringToStringVar(&o.args, "arg", nil, "模板变量 k=v，可重复")
	f.BoolVar(&o.stream, "stream", false, "流式输出")
	return cmd
}

func (a *app) runCall(ctx context.Context, o *callOptions) error {
	names := o.providers
	if len(names) == 0 {
		names = []string{a.settings.DefaultProvider}
	}

	targets := make([]target, 0, len(names))
	for _, name := range names {
		t, err := resolveTarget(a.settings, name, o.model, a.prices, a.logger)
		if err != nil {
			return err
		}
		targets = append(targets, t)
	}

	args := o.args
	if args == nil {
		args = map[string]string{}
	}

	outcomes := make([]callOutcome, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			// 只有一个 provider 时直接把流写到输出
			var live io.Writer
			if o.stream && len(targets) == 1 {
				live = a.out
			}
			out, err := a.callOne(ctx, t, o, args, live)
			if err != nil {
				return fmt.Errorf("%s: %w", t.name, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, out := range outcomes {
		if len(outcomes) > 1 {
			fmt.Fprintf(a.out, "== %s (%s) ==\n", out.target.name, out.target.model)
		}
		if !o.stream || len(outcomes) > 1 {
			fmt.Fprintln(a.out, out.content)
		}
	}
	fmt.Fprintln(a.out)
	_, err := fmt.Fprintln(a.out, summaryTable(outcomes))
	return err
}

func (a *app) callOne(ctx context.Context, t target, o *callOptions, args map[string]string, live io.Writer) (callOutcome, error) {
	opts := []llm.CallOption{
		llm.WithPrompt(o.template),
		llm.WithLogger(a.logger.With("provider", t.name)),
		llm.WithTags("cli"),
	}
	out := callOutcome{target: t}

	if !o.stream {
		fn, err := llm.Call[map[string]string](t.provider, t.model, nil, opts...)
		if err != nil {
			return out, err
		}
		resp, err := fn(ctx, args)
		if err != nil {
			return out, err
		}
		out.content, out.usage, out.cost = resp.Content(), resp.Usage(), resp.Cost()
		return out, nil
	}

	fn, err := llm.StreamCall[map[string]string](t.provider, t.model, nil, opts...)
	if err != nil {
		return out, err
	}
	stream, err := fn(ctx, args)
	if err != nil {
		return out, err
	}
	defer stream.Close()

	for {
		chunk, _, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}
		if live != nil && chunk != nil {
			fmt.Fprint(live, chunk.Content())
		}
	}
	if live != nil {
		fmt.Fprintln(live)
	}
	out.content, out.usage, out.cost = stream.Content(), stream.Usage(), stream.Cost()
	return out, nil
}

func summaryTable(outcomes []callOutcome) *uitable.Table {
	table := uitable.New()
	table.AddRow("PROVIDER", "MODEL", "INPUT TOKENS", "OUTPUT TOKENS", "COST")
	for _, out := range outcomes {
		in, outTokens := "-", "-"
		if out.usage != nil {
			in = fmt.Sprint(out.usage.InputTokens)
			outTokens = fmt.Sprint(out.usage.OutputTokens)
		}
		cost := "-"
		if out.cost != nil {
			cost = fmt.Sprintf("$%.6f", *out.cost)
		}
		table.AddRow(out.target.name, out.target.model, in, outTokens, cost)
	}
	return table
}
