package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "referral_bot"

// Metrics holds the bot's counters on a private registry. All methods are
// safe on a nil receiver.
type Metrics struct {
	registry      *prometheus.Registry
	gate          *prometheus.CounterVec
	oracleErrors  prometheus.Counter
	registrations *prometheus.CounterVec
	attributions  *prometheus.CounterVec
	rewards       prometheus.Counter
	notifyErrors  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Eligibility gate decisions by result.",
		}, []string{"result"}),
		oracleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "membership_oracle_errors_total",
			Help:      "Membership lookups that failed and were treated as not joined.",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Start events that reached registration, by kind.",
		}, []string{"kind"}),
		attributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attributions_total",
			Help:      "Referral attribution attempts by result.",
		}, []string{"result"}),
		rewards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_unlocked_total",
			Help:      "Referrers who crossed the reward threshold.",
		}),
		notifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.gate, m.oracleErrors, m.registrations, m.attributions, m.rewards, m.notifyErrors)
	return m
}

func (m *Metrics) GateDecision(allowed bool) {
	if m == nil {
		return
	}
	result := "blocked"
	if allowed {
		result = "allowed"
	}
	m.gate.WithLabelValues(result).Inc()
}

func (m *Metrics) OracleError() {
	if m == nil {
		return
	}
	m.oracleErrors.Inc()
}

func (m *Metrics) Registration(firstContact bool) {
	if m == nil {
		return
	}
	kind := "returning"
	if firstContact {
		kind = "first_contact"
	}
	m.registrations.WithLabelValues(kind).Inc()
}

func (m *Metrics) Attribution(result string, rewardUnlocked bool) {
	if m == nil {
		return
	}
	m.attributions.WithLabelValues(result).Inc()
	if rewardUnlocked {
		m.rewards.Inc()
	}
}

func (m *Metrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.notifyErrors.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
