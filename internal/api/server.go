// Package api serves the scheduling engine over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/zulandar/planyard/internal/config"
	store "github.com/zulandar/planyard/internal/db"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB *gorm.DB
	// Port defaults to 8080.
	Port int
	// Timeout bounds every store call made by a request.
	Timeout time.Duration
	Log     *log.Logger
	Out     io.Writer
}

// server carries what the handlers share.
type server struct {
	db      *gorm.DB
	timeout time.Duration
	log     *log.Logger
}

// scoped returns the store handle for one request, bound to the request
// context and the statement timeout.
func (s *server) scoped(c *gin.Context) (*gorm.DB, context.CancelFunc) {
	return store.Scoped(c.Request.Context(), s.db, s.timeout)
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultStatementTimeout
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(opts.Log))
	registerRoutes(router, &server{db: opts.DB, timeout: opts.Timeout, log: opts.Log})
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then shuts
// down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
		)
	}
}
