package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skylarbpayne/mirascope/version"
)

func newVersionCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := version.Get().Render(output)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, s)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "输出格式 (text, json, short)")
	return cmd
}
