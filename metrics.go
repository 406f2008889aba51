package authkit

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the engine's Prometheus counters. A nil *Metrics is valid
// and disables collection, so every increment helper is nil-safe.
type Metrics struct {
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	verifications *prometheus.CounterVec
	resets        *prometheus.CounterVec
	lockouts      prometheus.Counter
	reuseDetected prometheus.Counter
	cacheLookups  *prometheus.CounterVec
}

// NewMetrics builds and registers the engine counters on reg. Passing
// prometheus.DefaultRegisterer attaches them to the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkit_logins_total",
				Help: "Login attempts by result.",
			},
			[]string{"result"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkit_refreshes_total",
				Help: "Refresh-token rotations by result.",
			},
			[]string{"result"},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkit_email_verifications_total",
				Help: "Email verification confirmations by result.",
			},
			[]string{"result"},
		),
		resets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkit_password_resets_total",
				Help: "Password reset confirmations by result.",
			},
			[]string{"result"},
		),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authkit_lockouts_total",
			Help: "Accounts transitioned into the locked state.",
		}),
		reuseDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authkit_refresh_reuse_total",
			Help: "Refresh tokens presented after rotation or revocation.",
		}),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkit_identity_cache_total",
				Help: "Identity cache lookups by outcome.",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.logins, m.refreshes, m.verifications, m.resets,
			m.lockouts, m.reuseDetected, m.cacheLookups,
		)
	}
	return m
}

func (m *Metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) refreshResult(result string) {
	if m != nil {
		m.refreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) verification(result string) {
	if m != nil {
		m.verifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) reset(result string) {
	if m != nil {
		m.resets.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) lockout() {
	if m != nil {
		m.lockouts.Inc()
	}
}

func (m *Metrics) reuse() {
	if m != nil {
		m.reuseDetected.Inc()
	}
}

func (m *Metrics) cacheLookup(outcome string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(outcome).Inc()
	}
}
