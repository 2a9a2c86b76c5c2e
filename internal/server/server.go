// Package server exposes the chat mediator over HTTP, SSE and websocket.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/realtime"
)

// StartOpts holds configuration for the chat server.
type StartOpts struct {
	Mediator *chat.Mediator
	Hub      *realtime.Hub
	Port     int
	Out      io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// closes realtime subscribers and shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Mediator == nil {
		return fmt.Errorf("server: mediator is required")
	}
	if opts.Hub == nil {
		return fmt.Errorf("server: hub is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.Mediator, opts.Hub),
	}

	go func() {
		<-ctx.Done()
		opts.Hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Switchboard listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(m *chat.Mediator, hub *realtime.Hub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, m, hub)
	return router
}
