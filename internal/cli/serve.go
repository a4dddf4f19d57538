package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liliang-cn/oraculo/internal/api"
	"github.com/liliang-cn/oraculo/internal/api/admin"
)

func serveCMD(a *app) *cobra.Command {
	var addr string
	var updateOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Address()
			}
			return a.serve(cmd.Context(), addr, updateOnStart)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.host and server.port)")
	cmd.Flags().BoolVar(&updateOnStart, "update", false, "catalog and index new documents before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, addr string, updateOnStart bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := a.logger

	docs, err := a.orch.Documents()
	if err != nil {
		return err
	}
	ingest, err := a.orch.Ingest(ctx)
	if err != nil {
		return err
	}
	indexer, err := a.orch.Indexer(ctx)
	if err != nil {
		return err
	}
	retriever, err := a.orch.Retriever(ctx)
	if err != nil {
		return err
	}
	conversation, dispatcher, err := a.orch.Conversation(ctx)
	if err != nil {
		return err
	}

	if updateOnStart {
		summary, err := ingest.Update(ctx)
		if err != nil {
			logger.Error("startup update failed", zap.Error(err))
		} else {
			logger.Info("startup update finished",
				zap.Int("inserted", summary.Catalog.Inserted),
				zap.Int("indexed", summary.Index.Indexed),
			)
		}
	}

	requestsPerHour := 0
	if a.cfg.RateLimit.Enabled {
		requestsPerHour = a.cfg.RateLimit.RequestsPerHour
	}

	router := api.SetupRouter(api.Services{
		Chat: dispatcher,
		Admin: admin.Deps{
			Documents:     docs,
			Ingest:        ingest,
			Indexer:       indexer,
			Searcher:      retriever,
			Sessions:      conversation,
			Stats:         a.orch,
			DocumentsPath: a.cfg.Storage.Documents,
		},
		Metrics: a.metrics,
		Logger:  logger,
	}, api.RouterConfig{
		APIKey:          a.cfg.Admin.APIKey,
		AllowOrigins:    a.cfg.Server.AllowOrigins,
		RequestsPerHour: requestsPerHour,
	})

	// WriteTimeout leaves room for a full language model call.
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: a.cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting Oraculo server",
			zap.String("address", addr),
			zap.String("base_url", a.cfg.Server.BaseURL),
			zap.String("bot", a.cfg.Chat.BotName),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}
