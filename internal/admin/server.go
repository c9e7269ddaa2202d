package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/edgexfer/internal/observability"
	"github.com/danmuck/edgexfer/internal/transfer"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// Server exposes receiver health, metrics, and transfer status over HTTP.
type Server struct {
	app     string
	board   *transfer.StatusBoard
	router  *gin.Engine
	started time.Time
}

func New(app string, board *transfer.StatusBoard, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestTelemetry(log.Logger, app))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{app: app, board: board, router: r, started: time.Now()}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"app":     s.app,
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/transfers", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.board.Snapshot())
	})

	s.router.GET("/transfers/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an unsigned integer"})
			return
		}
		snap := s.board.Snapshot()
		for _, f := range snap.Active {
			if f.ID == id {
				c.JSON(http.StatusOK, gin.H{"state": "active", "file": f})
				return
			}
		}
		for i := len(snap.Completed) - 1; i >= 0; i-- {
			if snap.Completed[i].ID == id {
				c.JSON(http.StatusOK, gin.H{"state": "closed", "file": snap.Completed[i]})
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "transfer not found"})
	})
}

// Serve listens on addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	log.Info().Msgf("admin.Server listening addr=%q", ln.Addr().String())

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ln)
	}()
	select {
	case err := <-done:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-done; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
