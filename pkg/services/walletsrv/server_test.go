package walletsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hdcustody/walletd/pkg/cache"
	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubWalletReader struct {
	wallet *wallet.Wallet
	err    error
}

func (f *stubWalletReader) GetWallet(context.Context, string, wallet.Network) (*wallet.Wallet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.wallet, nil
}

func testServer(t *testing.T, svc WalletReader, opts ...func(*ServerOptions)) http.Handler {
	t.Helper()
	o := ServerOptions{
		Service:         svc,
		Cache:           cache.New(time.Hour, "wallet-service:"),
		PingDB:          func(context.Context) error { return nil },
		ConsumerRunning: func() bool { return true },
		Log:             zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return NewServer(o).Handler()
}

func TestServerGetWallet(t *testing.T) {
	w, err := wallet.New("user-1", wallet.Ethereum, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", 0)
	require.NoError(t, err)
	h := testServer(t, &stubWalletReader{wallet: w})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet/user-1?network=ethereum", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "user-1", body["user_id"])
	require.Equal(t, "ethereum", body["network"])
	require.Equal(t, w.Address, body["wallet_address"])
	require.Equal(t, w.CreatedAt.UTC().Format(time.RFC3339), body["created_at"])
}

func TestServerGetWalletBadNetwork(t *testing.T) {
	h := testServer(t, &stubWalletReader{})

	for _, target := range []string{"/wallet/user-1", "/wallet/user-1?network=dogecoin"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestServerGetWalletNotFound(t *testing.T) {
	h := testServer(t, &stubWalletReader{err: errors.Wrap(wallet.ErrNotFound, "no wallet")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet/user-1?network=tron", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerGetWalletInternalError(t *testing.T) {
	h := testServer(t, &stubWalletReader{err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet/user-1?network=bitcoin", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Internal server error", body["error"])
	require.NotEmpty(t, body["request_id"])
}

func TestServerResponseCache(t *testing.T) {
	w, err := wallet.New("user-1", wallet.Ethereum, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", 0)
	require.NoError(t, err)
	svc := &stubWalletReader{wallet: w}
	h := testServer(t, svc)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/wallet/user-1?network=ethereum", nil))
	require.Equal(t, "MISS", first.Header().Get("X-Cache"))

	// Even with the backend failing, the cached response is served.
	svc.err = errors.New("connection refused")
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/wallet/user-1?network=ethereum", nil))
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "HIT", second.Header().Get("X-Cache"))
	require.Equal(t, first.Body.String(), second.Body.String())
}

func TestServerRequestIDEcho(t *testing.T) {
	h := testServer(t, &stubWalletReader{err: wallet.ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/wallet/u?network=ethereum", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestServerHealth(t *testing.T) {
	h := testServer(t, &stubWalletReader{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string            `json:"status"`
		Service string            `json:"service"`
		Checks  map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body.Status)
	require.Equal(t, "wallet-service", body.Service)
	require.Equal(t, "healthy", body.Checks["kafka_consumer"])
}

func TestServerHealthDegraded(t *testing.T) {
	h := testServer(t, &stubWalletReader{}, func(o *ServerOptions) {
		o.PingDB = func(context.Context) error { return errors.New("down") }
		o.ConsumerRunning = func() bool { return false }
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "unhealthy", body.Status)
	require.Equal(t, "unhealthy", body.Checks["database"])
	require.Equal(t, "unhealthy", body.Checks["kafka_consumer"])
	require.Equal(t, "healthy", body.Checks["cache"])
}
