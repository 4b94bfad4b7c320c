package verifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hdcustody/walletd/pkg/services/httpsrv"
	"github.com/hdcustody/walletd/pkg/verification"
	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Verifier is the part of the service the HTTP server exposes.
type Verifier interface {
	VerifyUser(ctx context.Context, userID string, n wallet.Network, document []byte) (*verification.Verification, error)
}

// ServerOptions carries the HTTP server dependencies.
type ServerOptions struct {
	Address string
	Service Verifier
	Log     *zap.Logger
}

// Server is the verification HTTP API.
type Server struct {
	opts ServerOptions
	srv  *http.Server
}

// NewServer builds the verification HTTP server.
func NewServer(opts ServerOptions) *Server {
	s := &Server{opts: opts}
	s.srv = &http.Server{
		Addr:         opts.Address,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/verify", s.handleVerify).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	var h http.Handler = r
	h = httpsrv.WithRecovery(s.opts.Log, h)
	h = httpsrv.WithLogging(s.opts.Log, h)
	h = httpsrv.WithRequestID(h)
	return h
}

// Start runs the listener until Shutdown.
func (s *Server) Start() {
	s.opts.Log.Info("verification http server started", zap.String("address", s.opts.Address))
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

type verifyRequest struct {
	UserID   string `json:"user_id"`
	Network  string `json:"network"`
	Document string `json:"document"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpsrv.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	n, err := wallet.ParseNetwork(req.Network)
	if err != nil {
		httpsrv.WriteError(w, r, http.StatusBadRequest, "unsupported network: "+req.Network)
		return
	}
	document, err := base64.StdEncoding.DecodeString(req.Document)
	if err != nil {
		httpsrv.WriteError(w, r, http.StatusBadRequest, "document is not valid base64")
		return
	}

	v, err := s.opts.Service.VerifyUser(r.Context(), req.UserID, n, document)
	switch {
	case errors.Is(err, verification.ErrDocumentTooLarge):
		httpsrv.WriteError(w, r, http.StatusRequestEntityTooLarge, "document too large")
		return
	case errors.Is(err, verification.ErrEmptyUserID):
		httpsrv.WriteError(w, r, http.StatusUnprocessableEntity, "user_id must be 1..255 bytes")
		return
	case err != nil:
		s.opts.Log.Error("verification failed",
			zap.String("user_id", req.UserID), zap.Error(err))
		httpsrv.WriteError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	httpsrv.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message":         "verification completed",
		"verification_id": v.ID.String(),
		"status":          string(v.Status),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpsrv.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "verification-service",
	})
}
