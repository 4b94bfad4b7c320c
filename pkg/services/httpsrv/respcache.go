package httpsrv

import (
	"net/http"

	"github.com/hdcustody/walletd/pkg/cache"
)

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// WithResponseCache serves successful GET responses from the cache for
// cache.HTTPResponseTTL, keyed by path and query. The X-Cache header tells
// HIT from MISS.
func WithResponseCache(c *cache.Cache, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		key := "http:" + r.URL.Path + "?" + r.URL.RawQuery
		if v, ok := c.Get(key); ok {
			resp := v.(cachedResponse)
			w.Header().Set("Content-Type", resp.contentType)
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(resp.status)
			_, _ = w.Write(resp.body)
			return
		}

		rec := &bufferingRecorder{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Cache", "MISS")
		next.ServeHTTP(rec, r)
		if rec.status == http.StatusOK {
			c.SetTTL(key, cachedResponse{
				status:      rec.status,
				contentType: rec.Header().Get("Content-Type"),
				body:        rec.body,
			}, cache.HTTPResponseTTL)
		}
	})
}

type bufferingRecorder struct {
	http.ResponseWriter
	status int
	body   []byte
}

func (r *bufferingRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *bufferingRecorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}
