package cli

import (
	"context"

	"github.com/spf13/cobra"

	"chatkit/internal/config"
	"chatkit/pkg/logger"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

// contextKey CLI 上下文键
type contextKey struct{}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatkit",
		Short: "chatkit - tool-calling chat assistant",
		Long: `chatkit is a chat assistant backed by an OpenAI-compatible model.
It streams answers, calls built-in tools and runs multi-step travel
workflows, from the terminal or behind an HTTP/WebSocket gateway.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 跳过 version 和 help 命令的初始化
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			configPath := globalFlags.ConfigPath
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logCfg := cfg.Log
			if globalFlags.Verbose {
				logCfg.Level = "debug"
			}
			if globalFlags.Quiet {
				logCfg.Level = "error"
			}
			logCfg.Output = cmd.ErrOrStderr()
			if err := logger.Init(logCfg); err != nil {
				return err
			}

			// 存储路径; 禁用时为空
			var storagePath string
			if !cfg.Storage.Disabled {
				storagePath = cfg.Storage.Path
				if storagePath == "" {
					storagePath, err = config.DefaultDataPath()
					if err != nil {
						return err
					}
				}
				if storagePath, err = config.ExpandPath(storagePath); err != nil {
					return err
				}
			}

			cliCtx := NewCLIContext(cfg, configPath, logger.Get(), storagePath, globalFlags.Verbose, globalFlags.Quiet)
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, cliCtx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cliCtx := GetCLIContext(cmd); cliCtx != nil {
				return cliCtx.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "quiet mode")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewChatCmd())
	rootCmd.AddCommand(NewAskCmd())
	rootCmd.AddCommand(NewQACmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewSessionCmd())
	rootCmd.AddCommand(NewToolCmd())

	return rootCmd
}

// GetCLIContext 从命令上下文获取 CLI 上下文
func GetCLIContext(cmd *cobra.Command) *CLIContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cliCtx, ok := ctx.Value(contextKey{}).(*CLIContext)
	if !ok {
		return nil
	}
	return cliCtx
}

func mustCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return nil, errNoContext
	}
	return cliCtx, nil
}
