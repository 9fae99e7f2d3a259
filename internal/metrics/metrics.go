package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus del servicio. Van en un paquete propio para evitar
// ciclos de import entre los servicios y la capa HTTP.

var (
	ReconcileEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idmirror_reconcile_events_total",
		Help: "Eventos de lifecycle aplicados, por tipo y resultado",
	}, []string{"kind", "outcome"})

	OTPIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idmirror_otp_issued_total",
		Help: "Códigos OTP emitidos, por propósito",
	}, []string{"purpose"})

	OTPVerified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idmirror_otp_verified_total",
		Help: "Verificaciones de OTP, por propósito y resultado",
	}, []string{"purpose", "outcome"})

	WebhookRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idmirror_webhook_rejected_total",
		Help: "Entregas de webhook rechazadas por firma o payload inválido",
	})
)

// Register registra las métricas en el registry dado (o el default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{ReconcileEvents, OTPIssued, OTPVerified, WebhookRejected} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
