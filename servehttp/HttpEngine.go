package servehttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"blogapi/bizerror"
	"blogapi/common"
	"blogapi/config"
	"blogapi/infra/tracing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CloserFunc adapts a plain function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error {
	return f()
}

// NewEngine builds the router with the shared middleware chain, the health probe and the not-found fallback.
func NewEngine(cfg config.Config) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(tracing.TracingIngress())
	engine.Use(SecureHeaders(cfg.IsProduction()))
	engine.Use(CORS(cfg.HTTP.FrontendURL))
	engine.Use(bizerror.ErrorHandling())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "env": cfg.AppEnv})
	})
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, &common.ErrorBody{Code: "common.not_found", Message: "resource not found"})
	})
	return engine
}

// StartHTTPServer serves handler on the configured port until SIGINT or SIGTERM.
func StartHTTPServer(handler http.Handler, cfg config.HTTPConfig, closers ...io.Closer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}
	return Serve(ctx, srv, cfg.ShutdownTimeout, closers...)
}

// Serve runs srv until ctx is done, then drains in-flight requests within timeout and closes closers in order.
// A listen failure skips the drain but still closes closers.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration, closers ...io.Closer) error {
	listenErr := make(chan error, 1)
	go func() {
		logrus.Infof("http server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			logrus.WithError(err).Error("http server listen failed")
			closeAll(closers)
			return err
		}
	case <-ctx.Done():
		logrus.Infof("[QUIT] shutdown signal has been received, waiting at most %s for in-flight requests", timeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		logrus.WithError(err).Error("[QUIT] http server shutdown failed")
	} else {
		logrus.Info("[QUIT] http server is shutdown gracefully, new request will be rejected")
	}

	closeAll(closers)
	logrus.Info("[QUIT] service exiting")
	return err
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("[QUIT] close resource failed")
		}
	}
}
