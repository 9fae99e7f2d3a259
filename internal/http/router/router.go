// Package router arma el chi.Router del servicio con todas las rutas y su
// cadena de middlewares.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/health"
	usersctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/users"
	webhookctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/webhook"
	mw "github.com/dropDatabas3/idmirror/internal/http/middlewares"
	"github.com/dropDatabas3/idmirror/internal/rate"
)

// Deps contiene todo lo que el router necesita, ya construido.
type Deps struct {
	Auth    *authctrl.Controller
	Users   *usersctrl.Controller
	Webhook *webhookctrl.Controller
	Health  *healthctrl.Controller

	// Middlewares opcionales
	Session       mw.Middleware // nil deshabilita las rutas autenticadas
	ForgotLimiter rate.Limiter
	VerifyLimiter rate.Limiter

	CORSOrigins []string
	MetricsReg  *prometheus.Registry // nil usa el registry default
}

// New construye el handler raíz.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	base := []mw.Middleware{
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithRecover(),
	}
	if len(deps.CORSOrigins) > 0 {
		base = append(base, mw.WithCORS(deps.CORSOrigins))
	}
	for _, m := range base {
		r.Use(m)
	}

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", metricsHandler(deps.MetricsReg))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", deps.Auth.Signup)

			r.Group(func(r chi.Router) {
				if deps.VerifyLimiter != nil {
					r.Use(mw.WithEmailRateLimit(deps.VerifyLimiter, "verify"))
				}
				r.Post("/verify-otp", deps.Auth.VerifyOTP)
				r.Post("/reset-password", deps.Auth.ResetPassword)
			})

			r.Group(func(r chi.Router) {
				if deps.ForgotLimiter != nil {
					r.Use(mw.WithEmailRateLimit(deps.ForgotLimiter, "forgot"))
				}
				r.Post("/forgot-password", deps.Auth.ForgotPassword)
			})

			if deps.Session != nil {
				r.Group(func(r chi.Router) {
					r.Use(deps.Session)
					r.Post("/change-password", deps.Auth.ChangePassword)
				})
			}
		})

		r.Get("/users", deps.Users.List)
		r.Post("/webhooks/identity", deps.Webhook.HandleIdentityEvent)
	})

	return r
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
