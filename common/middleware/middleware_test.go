package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	hr "github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"

	"filecodebox.io/fcb/ratelimit"
	"filecodebox.io/fcb/stores"
)

func okHandler(w http.ResponseWriter, _ *http.Request, _ hr.Params) {
	w.WriteHeader(http.StatusOK)
}

func TestPanicRecoverer(t *testing.T) {
	h := Chain(func(http.ResponseWriter, *http.Request, hr.Params) {
		panic("boom")
	}, PanicRecoverer())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":500,"detail":"internal error"}`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	l := ratelimit.NewLimiter(stores.NewMemRecordStore(128))
	h := Chain(okHandler, RateLimit(l, "test", 2, time.Minute, ClientIdentity))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "1.2.3.4:5678"
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h(rec, req, nil)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}
	rec := httptest.NewRecorder()
	h(rec, req, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// other clients are unaffected
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "5.6.7.8:1234"
	rec = httptest.NewRecorder()
	h(rec, other, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIdentity(t *testing.T) {
	tcs := []struct {
		name       string
		remoteAddr string
		forwarded  string
		exp        string
	}{
		{"RemoteAddrHostPort", "1.2.3.4:5678", "", "1.2.3.4"},
		{"ForwardedForWins", "1.2.3.4:5678", "9.9.9.9", "9.9.9.9"},
		{"ForwardedForFirstHop", "1.2.3.4:5678", "9.9.9.9, 10.0.0.1", "9.9.9.9"},
		{"BareRemoteAddr", "1.2.3.4", "", "1.2.3.4"},
		{"NoAddrAtAll", "", "", "unknown"},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = c.remoteAddr
			if c.forwarded != "" {
				req.Header.Set("X-Forwarded-For", c.forwarded)
			}
			assert.Equal(t, c.exp, ClientIdentity(req, nil))
		})
	}
}

func TestCodeIdentity(t *testing.T) {
	ps := hr.Params{{Key: "code", Value: "123456"}}
	assert.Equal(t, "123456", CodeIdentity(nil, ps))
	assert.Equal(t, "unknown", CodeIdentity(nil, nil))
}
