package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantumdmn/dmn-go/internal/mockserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	mockAddr      string
	mockKeyOut    string
	mockUserID    string
	mockRateLimit int
	mockTokenTTL  time.Duration
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run a local token issuer and evaluation API for development",
	Long: `mock serves a fake Zitadel token endpoint and a QuantumDMN evaluation API
with an "echo" definition that returns its input. It writes a service-account
key file the client can use:

  dmn mock --addr :8089 --key-out key.json &
  export QUANTUMDMN_BASE_URL=http://localhost:8089
  export QUANTUMDMN_AUTH_ZITADEL_ISSUER=http://localhost:8089
  export QUANTUMDMN_AUTH_ZITADEL_KEY_FILE=key.json
  dmn evaluate echo --project 0b7c1c5e-8f5a-4d0e-9d55-2f7f0d3c9a11 --input in.json`,
	Args: cobra.NoArgs,
	RunE: runMock,
}

func init() {
	mockCmd.Flags().StringVar(&mockAddr, "addr", ":8089", "listen address")
	mockCmd.Flags().StringVar(&mockKeyOut, "key-out", "key.json", "where to write the generated service-account key")
	mockCmd.Flags().StringVar(&mockUserID, "user-id", "dmn-mock-user", "service-account user id")
	mockCmd.Flags().IntVar(&mockRateLimit, "rate-limit", 0, "per-IP requests per second; 0 disables")
	mockCmd.Flags().DurationVar(&mockTokenTTL, "token-ttl", time.Hour, "lifetime of issued access tokens")
}

func runMock(cmd *cobra.Command, _ []string) error {
	srv := mockserver.New(mockserver.Config{
		TokenTTL:  mockTokenTTL,
		RateLimit: mockRateLimit,
		Logger:    logger,
	})

	kf, err := srv.NewServiceAccount(mockUserID)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key file: %w", err)
	}
	if err := os.WriteFile(mockKeyOut, b, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	logger.Info("service-account key written", zap.String("path", mockKeyOut), zap.String("key_id", kf.KeyID))

	httpSrv := &http.Server{
		Addr:              mockAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock server listening", zap.String("addr", mockAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}

	logger.Info("shutting down mock server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
