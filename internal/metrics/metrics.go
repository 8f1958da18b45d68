package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultShown = "shown"
	ResultNone  = "none"
	ResultError = "error"
)

type Metrics struct {
	Selections  *prometheus.CounterVec
	AdminWrites *prometheus.CounterVec
}

// New registers the service collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Selections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "partner_notification_selections_total",
			Help: "Active notification lookups by outcome.",
		}, []string{"result"}),
		AdminWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "partner_notification_admin_writes_total",
			Help: "Admin create, update and delete calls by action and outcome.",
		}, []string{"action", "outcome"}),
	}
}
