package inbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts inbox activity. A Metrics built with a nil registerer still
// counts but is never exported.
type Metrics struct {
	Logins    *prometheus.CounterVec
	Views     prometheus.Counter
	Playbacks *prometheus.CounterVec
}

// NewMetrics registers the inbox counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vmail_logins_total",
			Help: "Access-code lookups by result (matched, unmatched, error).",
		}, []string{"result"}),
		Views: factory.NewCounter(prometheus.CounterOpts{
			Name: "vmail_messages_viewed_total",
			Help: "Messages marked as viewed.",
		}),
		Playbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vmail_playback_urls_total",
			Help: "Playback URLs minted by mode and result.",
		}, []string{"mode", "result"}),
	}
}
