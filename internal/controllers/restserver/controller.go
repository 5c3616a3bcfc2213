package restserver

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/gwrecharge/internal/managers"
	"github.com/chrissnell/gwrecharge/internal/recharge"
	"github.com/chrissnell/gwrecharge/internal/storage"
	"github.com/chrissnell/gwrecharge/internal/types"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig types.ServerConfig
	defaults   recharge.Config
	Server     http.Server
	runs       *managers.RunManager
	health     storage.HealthChecker // nil when the store cannot report its health
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller. store may be nil when
// archiving is disabled.
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg *types.Config, runs *managers.RunManager, store storage.RunStore, logger *zap.SugaredLogger) (*Controller, error) {
	if runs == nil {
		return nil, fmt.Errorf("REST server needs a run manager")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: cfg.Server,
		defaults:   cfg.Recharge,
		runs:       runs,
		logger:     logger,
	}
	if hc, ok := store.(storage.HealthChecker); ok {
		ctrl.health = hc
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if ctrl.restConfig.ListenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		ctrl.restConfig.ListenAddr = "0.0.0.0"
	}
	if ctrl.restConfig.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		ctrl.restConfig.Port = 8080
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", ctrl.restConfig.ListenAddr, ctrl.restConfig.Port)
	ctrl.Server.Handler = ctrl.setupRouter()

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %v...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		c.Server.Shutdown(ctx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.loggingMiddleware)
	router.Use(c.corsMiddleware)

	// Preflight requests are answered by corsMiddleware
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	api := router.PathPrefix("/api/v1").Subrouter()
	if c.restConfig.AuthToken != "" {
		api.Use(c.authMiddleware)
	}

	// Recession curve fitting is synchronous
	api.HandleFunc("/mrc", c.handlers.FitMRC).Methods(http.MethodPost)

	// Recharge runs
	api.HandleFunc("/runs", c.handlers.SubmitRun).Methods(http.MethodPost)
	api.HandleFunc("/runs", c.handlers.ListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", c.handlers.GetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", c.handlers.CancelRun).Methods(http.MethodDelete)
	api.HandleFunc("/runs/{id}/result", c.handlers.GetRunResult).Methods(http.MethodGet)

	router.HandleFunc("/healthz", c.handlers.Health).Methods(http.MethodGet)

	return router
}

// loggingMiddleware logs each request at debug level
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		c.logger.Debugf("%s %s %s %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// corsMiddleware adds CORS headers and answers preflight requests
func (c *Controller) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates the bearer token
func (c *Controller) authMiddleware(next http.Handler) http.Handler {
	expected := []byte("Bearer " + c.restConfig.AuthToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), expected) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		c.logger.Debugf("Auth failed for %s", r.URL.Path)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	})
}

// defaultConfig returns a copy of the configured evaluation defaults that a
// request body can be decoded onto.
func (c *Controller) defaultConfig() recharge.Config {
	cfg := c.defaults
	if c.defaults.Limits != nil {
		cfg.Limits = append([]float64(nil), c.defaults.Limits...)
	}
	return cfg
}
