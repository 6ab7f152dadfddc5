package main

import (
	"fmt"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func newPricesCmd(a *app) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "列出每百万 token 的价格 (USD)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := a.prices.Providers()
			if provider != "" {
				provider = strings.ToLower(provider)
				if len(a.prices.Models(provider)) == 0 {
					return fmt.Errorf("no prices for provider %q", provider)
				}
				names = []string{provider}
			}

			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("PROVIDER", "MODEL", "INPUT", "OUTPUT")
			for _, name := range names {
				for _, model := range a.prices.Models(name) {
					p, _ := a.prices.Lookup(name, model)
					table.AddRow(name, model, formatPrice(p.Input), formatPrice(p.Output))
				}
			}
			_, err := fmt.Fprintln(a.out, table)
			return err
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "只显示该 provider")
	return cmd
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.4g", v)
}
