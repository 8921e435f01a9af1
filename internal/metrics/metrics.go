package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Coletores do Prometheus. São registrados via Register.
var (
	regOK atomic.Bool

	ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopify_monitor",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Number of completed passes over all monitors.",
		},
	)
	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shopify_monitor",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a full pass over all monitors.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	monitorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopify_monitor",
			Subsystem: "scheduler",
			Name:      "monitor_failures_total",
			Help:      "Number of monitors skipped in a tick because of an error.",
		}, []string{"kind", "reason"},
	)
	variants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopify_monitor",
			Subsystem: "reconciler",
			Name:      "variants_total",
			Help:      "Number of reconciled variants by classification.",
		}, []string{"classification"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopify_monitor",
			Subsystem: "notifier",
			Name:      "notifications_total",
			Help:      "Number of notifications sent, by result.",
		}, []string{"result"},
	)
)

// Register registra todos os coletores no registerer informado.
// Chamadas repetidas após um registro bem sucedido não fazem nada.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{ticks, tickDuration, monitorFailures, variants, notifications}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler retorna o handler HTTP do endpoint /metrics
func Handler() http.Handler { return promhttp.Handler() }

// As funções abaixo não fazem nada enquanto Register não for chamado.

func ObserveTick(d time.Duration) {
	if regOK.Load() {
		ticks.Inc()
		tickDuration.Observe(d.Seconds())
	}
}

func IncMonitorFailure(kind, reason string) {
	if regOK.Load() {
		monitorFailures.WithLabelValues(kind, reason).Inc()
	}
}

func IncVariant(classification string) {
	if regOK.Load() {
		variants.WithLabelValues(classification).Inc()
	}
}

func IncNotification(ok bool) {
	if !regOK.Load() {
		return
	}
	if ok {
		notifications.WithLabelValues("sent").Inc()
	} else {
		notifications.WithLabelValues("failed").Inc()
	}
}
