package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/danmuck/lookingglass/internal/config"
	"github.com/danmuck/lookingglass/internal/diagnostics"
	"github.com/danmuck/lookingglass/internal/heartbeat"
	"github.com/danmuck/lookingglass/internal/observability"
	"github.com/danmuck/lookingglass/internal/server"
	"github.com/danmuck/lookingglass/internal/tools"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the panel HTTP server and, when configured, the agent heartbeat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			logger := observability.InitLogger(appName)
			gin.SetMode(gin.ReleaseMode)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config and PORT)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	srv := server.Appear(server.Options{
		ID:             appName,
		Addr:           cfg.Addr,
		CorsOrigins:    cfg.CorsOrigins,
		TrustedProxies: cfg.TrustedProxies,
		FrontendDir:    cfg.FrontendDir,
		AdminPassword:  cfg.AdminPassword,
		AgentImage:     cfg.AgentImage,
		Invoker:        newInvoker(cfg, logger),
		Logger:         &logger,
	})
	if cfg.AdminPassword == "" {
		logger.Warn().Msg("admin password not configured; admin routes disabled")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	if cfg.Agent.HeartbeatEnabled() {
		sender, err := heartbeat.NewSender(heartbeat.Config{
			PanelURL: cfg.Agent.PanelURL,
			Token:    cfg.Agent.Token,
			Status:   cfg.Agent.Status,
			Interval: cfg.Agent.HeartbeatInterval,
			Logger:   &logger,
		})
		if err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sender.Run(ctx); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(ctx); err != nil {
			errCh <- fmt.Errorf("panel: %w", err)
		}
		cancel()
	}()

	wg.Wait()
	close(errCh)
	return <-errCh
}

func newInvoker(cfg config.Config, logger zerolog.Logger) *diagnostics.Invoker {
	opts := []diagnostics.InvokerOption{diagnostics.WithLogger(logger)}
	for kind, path := range cfg.Diagnostics.Tools {
		opts = append(opts, diagnostics.WithToolPath(kind, path))
	}
	runner := tools.ExecRunner{
		Timeout:   cfg.Diagnostics.Timeout,
		MaxOutput: cfg.Diagnostics.MaxOutputBytes,
	}
	return diagnostics.NewInvoker(runner, opts...)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
