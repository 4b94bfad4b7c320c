package walletsrv

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hdcustody/walletd/pkg/cache"
	"github.com/hdcustody/walletd/pkg/services/httpsrv"
	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// WalletReader is the part of the wallet service the HTTP server exposes.
type WalletReader interface {
	GetWallet(ctx context.Context, userID string, n wallet.Network) (*wallet.Wallet, error)
}

// ServerOptions carries the HTTP server dependencies.
type ServerOptions struct {
	Address         string
	Service         WalletReader
	Cache           *cache.Cache
	PingDB          func(ctx context.Context) error
	ConsumerRunning func() bool
	Log             *zap.Logger
}

// Server is the wallet lookup HTTP API.
type Server struct {
	opts ServerOptions
	srv  *http.Server
}

// NewServer builds the wallet HTTP server.
func NewServer(opts ServerOptions) *Server {
	s := &Server{opts: opts}
	s.srv = &http.Server{
		Addr:         opts.Address,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/wallet/{user_id}",
		httpsrv.WithResponseCache(s.opts.Cache, http.HandlerFunc(s.handleGetWallet))).
		Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	var h http.Handler = r
	h = httpsrv.WithRecovery(s.opts.Log, h)
	h = httpsrv.WithLogging(s.opts.Log, h)
	h = httpsrv.WithRequestID(h)
	return h
}

// Start runs the listener until Shutdown.
func (s *Server) Start() {
	s.opts.Log.Info("wallet http server started", zap.String("address", s.opts.Address))
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.opts.Log.Error("http server stopped", zap.Error(err))
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	rawNetwork := r.URL.Query().Get("network")
	if rawNetwork == "" {
		httpsrv.WriteError(w, r, http.StatusBadRequest, "network query parameter is required")
		return
	}
	n, err := wallet.ParseNetwork(rawNetwork)
	if err != nil {
		httpsrv.WriteError(w, r, http.StatusBadRequest, "unsupported network: "+rawNetwork)
		return
	}

	wlt, err := s.opts.Service.GetWallet(r.Context(), userID, n)
	if errors.Is(err, wallet.ErrNotFound) {
		httpsrv.WriteError(w, r, http.StatusNotFound, "wallet not found")
		return
	}
	if err != nil {
		s.opts.Log.Error("wallet lookup failed",
			zap.String("user_id", userID), zap.Error(err))
		httpsrv.WriteError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	httpsrv.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id":        wlt.UserID,
		"network":        wlt.Network.String(),
		"wallet_address": wlt.Address,
		"created_at":     wlt.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database":       "healthy",
		"cache":          "healthy",
		"kafka_consumer": "healthy",
	}
	healthy := true

	if err := s.opts.PingDB(r.Context()); err != nil {
		checks["database"] = "unhealthy"
		healthy = false
	}
	if !cacheUsable(s.opts.Cache) {
		checks["cache"] = "unhealthy"
		healthy = false
	}
	if !s.opts.ConsumerRunning() {
		checks["kafka_consumer"] = "unhealthy"
		healthy = false
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	httpsrv.WriteJSON(w, code, map[string]any{
		"status":  status,
		"service": "wallet-service",
		"checks":  checks,
	})
}

// cacheUsable probes the cache with a throwaway round trip.
func cacheUsable(c *cache.Cache) bool {
	c.SetTTL("health:probe", true, time.Second)
	_, ok := c.Get("health:probe")
	return ok
}
