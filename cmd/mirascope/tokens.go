package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/tokens"
)

func newTokensCmd(a *app) *cobra.Command {
	var (
		model string
		chat  bool
	)
	cmd := &cobra.Command{
		Use:   "tokens [TEXT...]",
		Short: "统计文本的 token 数，未给出 TEXT 时读取标准输入",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}

			counter, err := tokens.ForModel(model)
			if err != nil {
				return err
			}

			n := counter.Count(text)
			if chat {
				// 按 SYSTEM:/USER:/ASSISTANT: 标记拆分为消息，不做变量替换
				msgs, err := llm.RenderMessages(strings.ReplaceAll(strings.ReplaceAll(text, "{", "{{"), "}", "}}"), nil)
				if err != nil {
					return err
				}
				n = counter.CountMessages(msgs)
			}

			table := uitable.New()
			table.AddRow("model:", model)
			table.AddRow("encoding:", counter.Encoding())
			table.AddRow("tokens:", n)
			_, err = fmt.Fprintln(a.out, table)
			return err
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "gpt-4o", "用于选择编码的模型名")
	cmd.Flags().BoolVar(&chat, "chat", false, "按 chat 消息格式计数")
	return cmd
}
