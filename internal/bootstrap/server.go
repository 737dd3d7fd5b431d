package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/glamexpress/api"
	"github.com/Domenick1991/glamexpress/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 5 * time.Second

// NewRouter builds the gin engine with CORS for the browser shell and every BFF route.
func NewRouter(cfg *config.Config, parser api.TokenParser, handlers api.Handlers, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger))

	corsCfg := cors.DefaultConfig()
	if len(cfg.HTTP.AllowedOrigins) == 0 || (len(cfg.HTTP.AllowedOrigins) == 1 && cfg.HTTP.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.HTTP.AllowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	corsCfg.ExposeHeaders = []string{"X-Request-ID"}
	router.Use(cors.New(corsCfg))

	api.Mount(router, parser, handlers, logger)
	return router
}

// Run serves handler and blocks until ctx is cancelled or the server fails.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler, logger *logrus.Logger) error {
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           otelhttp.NewHandler(handler, "glamexpress-bff"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", cfg.HTTP.Address).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
