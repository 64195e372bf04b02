package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	hr "github.com/julienschmidt/httprouter"
	log "github.com/sirupsen/logrus"

	"filecodebox.io/fcb/ratelimit"
)

type Middleware func(hr.Handle) hr.Handle

// Chain composites given handler and middlewares
func Chain(h hr.Handle, ms ...Middleware) hr.Handle {
	for _, m := range ms {
		h = m(h)
	}
	return h
}

// PanicRecoverer recovers from panic of underlying handlers and responds 500
func PanicRecoverer() Middleware {
	return func(h hr.Handle) hr.Handle {
		return func(w http.ResponseWriter, r *http.Request, p hr.Params) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithField("panicReason", rec).Error("got panic from underlying handler")
					writeEnvelope(w, http.StatusInternalServerError, "internal error")
				}
			}()
			h(w, r, p)
		}
	}
}

// IdentityFn extracts the identity a rate limit counts against.
type IdentityFn func(r *http.Request, p hr.Params) string

// ClientIdentity keys limits on the caller's network address. It trusts
// X-Forwarded-For since the service is meant to sit behind a proxy.
func ClientIdentity(r *http.Request, _ hr.Params) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// CodeIdentity keys limits on the share code in the route so one hot code
// cannot be brute-force polled from many addresses.
func CodeIdentity(_ *http.Request, p hr.Params) string {
	if code := p.ByName("code"); code != "" {
		return code
	}
	return "unknown"
}

// RateLimit rejects requests beyond limit per window with 429.
func RateLimit(l *ratelimit.Limiter, name string, limit int, window time.Duration, identity IdentityFn) Middleware {
	return func(h hr.Handle) hr.Handle {
		return func(w http.ResponseWriter, r *http.Request, p hr.Params) {
			if !l.Allow(name, identity(r, p), limit, window) {
				writeEnvelope(w, http.StatusTooManyRequests, "too many requests, slow down")
				return
			}
			h(w, r, p)
		}
	}
}

func writeEnvelope(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"code":   status,
		"detail": detail,
	}); err != nil {
		log.WithError(err).Error("failed to write response envelope")
	}
}
