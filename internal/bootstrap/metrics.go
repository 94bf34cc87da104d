package bootstrap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Join attempt results.
const (
	resultSuccess = "success"
	resultRetry   = "retry"
	resultFatal   = "fatal"
	resultNoop    = "noop"
)

// Metrics holds the coordinator's prometheus collectors.
type Metrics struct {
	joinAttempts      *prometheus.CounterVec
	joinDuration      *prometheus.HistogramVec
	nodeStates        *prometheus.GaugeVec
	controlPlaneInit  *prometheus.HistogramVec
	credentialExpiry  prometheus.Gauge
	credentialsIssued prometheus.Counter
}

// NewMetrics creates the collectors for cluster and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, cluster string) *Metrics {
	labels := prometheus.Labels{"cluster": cluster}
	m := &Metrics{
		joinAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "kubejoin",
				Subsystem:   "worker",
				Name:        "join_attempts_total",
				Help:        "Total number of worker join attempts by result",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		joinDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   "kubejoin",
				Subsystem:   "worker",
				Name:        "join_duration_seconds",
				Help:        "Duration of a worker join from provisioning to a terminal state",
				Buckets:     prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		nodeStates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   "kubejoin",
				Subsystem:   "cluster",
				Name:        "nodes",
				Help:        "Number of nodes by role and bootstrap state",
				ConstLabels: labels,
			},
			[]string{"role", "state"},
		),
		controlPlaneInit: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   "kubejoin",
				Subsystem:   "control_plane",
				Name:        "init_duration_seconds",
				Help:        "Duration of control plane initialization by result",
				Buckets:     prometheus.ExponentialBuckets(10, 2, 8), // 10s to ~21min
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		credentialExpiry: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kubejoin",
			Subsystem:   "credential",
			Name:        "expiry_timestamp_seconds",
			Help:        "Unix time at which the published join credential expires",
			ConstLabels: labels,
		}),
		credentialsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "kubejoin",
			Subsystem:   "credential",
			Name:        "published_total",
			Help:        "Total number of join credentials published",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.joinAttempts,
			m.joinDuration,
			m.nodeStates,
			m.controlPlaneInit,
			m.credentialExpiry,
			m.credentialsIssued,
		)
	}
	return m
}

func (m *Metrics) recordJoinAttempt(result string) {
	if m == nil {
		return
	}
	m.joinAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) recordJoin(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.joinDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) recordControlPlaneInit(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.controlPlaneInit.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) recordCredential(cred *JoinCredential) {
	if m == nil {
		return
	}
	m.credentialsIssued.Inc()
	m.credentialExpiry.Set(float64(cred.ExpiresAt.Unix()))
}

func (m *Metrics) recordTransition(role Role, from, to NodeState) {
	if m == nil {
		return
	}
	if from != "" {
		m.nodeStates.WithLabelValues(string(role), string(from)).Dec()
	}
	m.nodeStates.WithLabelValues(string(role), string(to)).Inc()
}
