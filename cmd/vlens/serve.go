package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/vendor-lens/internal/resolver"
	"github.com/Veraticus/vendor-lens/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the vendor resolution HTTP API",
		Long: `Start the HTTP server exposing resolution and mapping management
endpoints. Callers authenticate with bearer tokens configured under
auth.tokens (token: user-id).`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	oracleResolver, err := initOracle(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize oracle: %w", err)
	}
	defer func() { _ = oracleResolver.Close() }()

	engine := resolver.NewWithConfig(store, oracleResolver, logger, resolver.Config{
		OracleTimeout: oracleTimeout(),
		MaxWorkers:    viper.GetInt("resolver.max_workers"),
	})

	tokens := viper.GetStringMapString("auth.tokens")
	if len(tokens) == 0 {
		return fmt.Errorf("no auth tokens configured: set auth.tokens in the config file")
	}

	srv := server.NewServer(engine, store, server.NewTokenAuthenticator(tokens), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(viper.GetString("server.addr"))
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		logger.Info("server stopped")
		return nil
	}
}
