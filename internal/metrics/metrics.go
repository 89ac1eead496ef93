package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal      *prometheus.CounterVec
	votesCastTotal         prometheus.Counter
	voteRejectionsTotal    *prometheus.CounterVec
	statusTransitionsTotal *prometheus.CounterVec
	tallyCacheLookupsTotal *prometheus.CounterVec
	votesAuditedTotal      prometheus.Counter
	registerOnce           sync.Once
)

// Register initializes Prometheus metrics on the default registry.
// Until it runs every helper below is a no-op.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voting",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the voting API.",
		}, []string{"method", "path", "status"})

		votesCastTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "voting",
			Name:      "votes_cast_total",
			Help:      "Votes persisted by the voting engine.",
		})

		voteRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voting",
			Name:      "vote_rejections_total",
			Help:      "Vote attempts rejected by the voting engine, by reason.",
		}, []string{"reason"})

		statusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voting",
			Name:      "election_status_transitions_total",
			Help:      "Stored election statuses found stale and recomputed.",
		}, []string{"from", "to"})

		tallyCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voting",
			Name:      "tally_cache_lookups_total",
			Help:      "Results tally cache lookups, by result.",
		}, []string{"result"})

		votesAuditedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "voting",
			Name:      "votes_audited_total",
			Help:      "Vote events consumed by the audit worker.",
		})
	})
}

// IncRequest increments the http_requests_total counter with the given labels.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

func IncVoteCast() {
	if votesCastTotal == nil {
		return
	}
	votesCastTotal.Inc()
}

func IncVoteRejected(reason string) {
	if voteRejectionsTotal == nil {
		return
	}
	voteRejectionsTotal.WithLabelValues(reason).Inc()
}

func IncStatusTransition(from, to string) {
	if statusTransitionsTotal == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	statusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// IncTallyCache records a cache lookup; result is "hit", "miss", "error" or
// "bypass" when a failed invalidation keeps the cache out of the read.
func IncTallyCache(result string) {
	if tallyCacheLookupsTotal == nil {
		return
	}
	tallyCacheLookupsTotal.WithLabelValues(result).Inc()
}

func IncVoteAudited() {
	if votesAuditedTotal == nil {
		return
	}
	votesAuditedTotal.Inc()
}
