// Package statushttp serves the read-only status API: portfolio state,
// open positions, the decision journal and Prometheus metrics.
package statushttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"helmsman/internal/logger"
	"helmsman/internal/metrics"
	"helmsman/internal/profile"
	"helmsman/internal/rebalance"
	"helmsman/internal/store"
	"helmsman/internal/types"

	"github.com/gin-gonic/gin"
)

// PortfolioStatus is the /api/portfolio payload.
type PortfolioStatus struct {
	Capital       float64                `json:"capital"`
	ReservedRisk  float64                `json:"reserved_risk"`
	Utilization   float64                `json:"utilization"`
	OpenPositions int                    `json:"open_positions"`
	ActiveProfile string                 `json:"active_profile"`
	Allocations   []rebalance.Allocation `json:"allocations"`
}

// StatusProvider supplies live portfolio state to the API.
type StatusProvider interface {
	Portfolio() PortfolioStatus
	Positions() []*types.Position
}

// ServerConfig describes the status server dependencies. Journal may
// be nil when journaling is disabled.
type ServerConfig struct {
	Addr     string
	Status   StatusProvider
	Journal  *store.Journal
	Profiles *profile.Registry
}

type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Status == nil {
		return nil, errors.New("status http server requires a status provider")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9981"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.GET("/portfolio", func(c *gin.Context) {
		c.JSON(http.StatusOK, cfg.Status.Portfolio())
	})
	api.GET("/positions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"positions": cfg.Status.Positions()})
	})
	api.GET("/decisions", func(c *gin.Context) {
		if cfg.Journal == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		var (
			recs []store.DecisionRecord
			err  error
		)
		if instrument := c.Query("instrument"); instrument != "" {
			recs, err = cfg.Journal.RecentFor(instrument, limit)
		} else {
			recs, err = cfg.Journal.Recent(limit)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"decisions": recs})
	})
	if cfg.Profiles != nil {
		api.GET("/profiles", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"profiles": cfg.Profiles.Names()})
		})
		api.GET("/profiles/:name", func(c *gin.Context) {
			out, err := cfg.Profiles.Dump(c.Param("name"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.String(http.StatusOK, out)
		})
	}

	return &Server{addr: cfg.Addr, router: router}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
