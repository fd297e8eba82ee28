package server

import (
	"context"
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/sf7293/sfm-utils/internal/metrics"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// ConsumerStatus is what the probes need to know about a running consumer.
type ConsumerStatus interface {
	IsHealthy() bool
	Ready() bool
}

func NewRouter(status ConsumerStatus) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/readiness", func(c *gin.Context) {
		if !status.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/liveness", func(c *gin.Context) {
		if !status.IsHealthy() {
			slog.Error("Rabbit is not healthy")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not healthy"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "up"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}

// Serve runs handler on listener until ctx is done, then shuts the server down gracefully.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler: handler,
	}

	errChan := make(chan error, 1)
	// Initializing the server in a goroutine so that
	// it won't block the graceful shutdown handling below
	go func() {
		slog.Info("Starting health server", "addr", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down health server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func ListenAndServe(ctx context.Context, port string, handler http.Handler) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	return Serve(ctx, listener, handler)
}
