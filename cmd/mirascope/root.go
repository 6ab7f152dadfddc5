package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skylarbpayne/mirascope/config"
	"github.com/skylarbpayne/mirascope/llm/pricing"
)

// app 保存各子命令共享的状态，在 PersistentPreRunE 中初始化
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	logLevel   string

	settings config.Settings
	logger   *slog.Logger
	prices   *pricing.Table
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "mirascope",
		Short:         "Call LLM providers through one interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv(config.EnvPrefix+"_CONFIG"), "配置文件路径 (yaml/json/toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "日志级别，覆盖配置中的 log_level")

	root.AddCommand(
		newVersionCmd(a),
		newPricesCmd(a),
		newTokensCmd(a),
		newCallCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.LoadSettings(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.settings = cfg.Get()
	if a.logLevel != "" {
		a.settings.LogLevel = a.logLevel
	}

	level, err := a.settings.Level()
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))

	a.prices = pricing.Default()
	if a.settings.Pricing != "" {
		f, err := os.Open(a.settings.Pricing)
		if err != nil {
			return fmt.Errorf("open pricing override: %w", err)
		}
		defer f.Close()
		override, err := pricing.Load(f)
		if err != nil {
			return err
		}
		a.prices = a.prices.Merge(override)
	}
	a.logger.Debug("config loaded", "path", a.configPath, "providers", a.settings.ProviderNames())
	return nil
}
