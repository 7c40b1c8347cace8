package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// toggleTotal counts relation flips by relation and resulting state
	toggleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_toggles_total",
		Help: "Relation toggles by relation and resulting state",
	}, []string{"relation", "state"})

	// lookupFailures counts viewer lookups that degraded to false
	lookupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_view_lookup_failures_total",
		Help: "Viewer-relative lookups that failed while assembling post views",
	}, []string{"relation"})
)

func recordToggle(relation string, on bool) {
	state := "removed"
	if on {
		state = "added"
	}
	toggleTotal.WithLabelValues(relation, state).Inc()
}
