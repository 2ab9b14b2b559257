package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chatkit/internal/config"
	"chatkit/internal/gateway"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatkit gateway server",
		Long: `Start the chatkit gateway server.

This command starts the HTTP gateway server that provides:
- POST /api/v1/chat for single requests
- WebSocket streaming at /api/v1/ws
- Session and tool listing endpoints

The server listens on the configured host and port (default: 127.0.0.1:18790).
Edits to the config file are announced to connected WebSocket clients.`,
		Example: `  # Start server with default configuration
  chatkit serve

  # Start server on a custom port
  chatkit serve --port 8080`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx, err := mustCLIContext(cmd)
	if err != nil {
		return err
	}

	cfg := cliCtx.Config
	log := cliCtx.Log()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Gateway.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Gateway.Host = host
	}

	r, err := cliCtx.Runner()
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	registry, err := cliCtx.Registry()
	if err != nil {
		return err
	}
	defs, err := registry.ToProviderTools()
	if err != nil {
		return err
	}
	store, err := cliCtx.GetStorage()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	srv := gateway.NewServer(gateway.Options{
		Config:    cfg,
		Version:   Version,
		Assistant: r,
		Store:     store,
		Tools:     defs,
		QA:        cliCtx.QA(),
	})

	// 配置文件变更只通知客户端, 运行中的 runner 不会重建
	if _, statErr := os.Stat(cliCtx.ConfigPath); statErr == nil {
		loader, err := config.NewLoader(cliCtx.ConfigPath)
		if err != nil {
			return err
		}
		if err := loader.Watch(func(*config.Config) { srv.NotifyReload(loader.Path()) }); err != nil {
			log.Warn().Err(err).Msg("Config watch disabled")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().
		Str("address", fmt.Sprintf("http://%s", cfg.Gateway.Addr())).
		Msg("Server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		log.Info().Msg("Shutting down server...")
	case <-cmd.Context().Done():
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			return err
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}
