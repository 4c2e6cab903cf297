package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/imagen/internal/config"
	"github.com/dmorgan81/imagen/internal/handle"
	"github.com/dmorgan81/imagen/internal/inject"
	"github.com/dmorgan81/imagen/internal/log"
	"github.com/gin-gonic/gin"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func main() {
	var level slog.LevelVar
	logger := log.New(os.Stderr, &level)
	ctx := log.NewContext(context.Background(), logger)

	injector := inject.Setup(ctx, os.Getenv)
	cfg, err := do.Invoke[config.Config](injector)
	if err != nil {
		logger.Error("could not load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(log.Level(cfg.Debug))
	gin.SetMode(lo.Ternary(cfg.Debug, gin.DebugMode, gin.ReleaseMode))

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		handler := do.MustInvoke[*handle.URLHandler](injector)
		lambda.StartWithOptions(handler.Handle, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
			_ = injector.Shutdown()
		}))
		return
	}

	if err := serve(ctx, cfg, do.MustInvoke[*gin.Engine](injector)); err != nil {
		logger.Error("server stopped", "error", err)
		_ = injector.Shutdown()
		os.Exit(1)
	}
	_ = injector.Shutdown()
}

func serve(ctx context.Context, cfg config.Config, handler http.Handler) error {
	logger := log.FromContextOrDiscard(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
