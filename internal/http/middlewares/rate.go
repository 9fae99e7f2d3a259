package middlewares

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dropDatabas3/idmirror/internal/http/errors"
	"github.com/dropDatabas3/idmirror/internal/observability/logger"
	"github.com/dropDatabas3/idmirror/internal/rate"
)

const maxPeekBytes = 4096

// clientIP extrae la IP del cliente, considerando proxies.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// peekJSONField lee hasta maxPeekBytes del body para extraer un campo string
// y repone el body para el handler.
func peekJSONField(r *http.Request, field string) string {
	if r.Method != http.MethodPost ||
		!strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, r.Body, maxPeekBytes)
	rest := r.Body
	r.Body = readCloser{io.MultiReader(bytes.NewReader(buf.Bytes()), rest), rest}

	var tmp map[string]any
	if err := json.Unmarshal(buf.Bytes(), &tmp); err == nil {
		if s, ok := tmp[field].(string); ok {
			return s
		}
	}
	return ""
}

type readCloser struct {
	io.Reader
	io.Closer
}

// WithEmailRateLimit limita los POST de OTP por (email, IP). La clave incluye
// el email del body para que un atacante no queme la cuota de otra IP, y la
// IP para que rotar emails tampoco sirva.
func WithEmailRateLimit(limiter rate.Limiter, op string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := strings.ToLower(strings.TrimSpace(peekJSONField(r, "email")))
			key := fmt.Sprintf("%s:%s:%s", op, email, clientIP(r))

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// El limiter caído no voltea el endpoint; queda registrado.
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				if secs := int(res.RetryAfter.Seconds()); secs > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				errors.WriteError(w, r, errors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
