package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	submissionsTotal      *prometheus.CounterVec
	reviewsTotal          *prometheus.CounterVec
	reviewConflictsTotal  prometheus.Counter
	ledgerCreditsTotal    *prometheus.CounterVec
	ledgerCoinsTotal      prometheus.Counter
	ledgerPointsTotal     prometheus.Counter
	eventsPublishedTotal  *prometheus.CounterVec
	leaderboardCacheTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gema_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_submissions_total",
			Help: "Submissions created, by challenge type.",
		}, []string{"type"})

		reviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_reviews_total",
			Help: "Submission reviews committed, by decision.",
		}, []string{"decision"})

		reviewConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gema_review_conflicts_total",
			Help: "Reviews rejected because the submission was no longer pending.",
		})

		ledgerCreditsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_ledger_credits_total",
			Help: "Ledger credit attempts, by outcome.",
		}, []string{"outcome"})

		ledgerCoinsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gema_ledger_coins_credited_total",
			Help: "Coins credited through the reward ledger.",
		})

		ledgerPointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gema_ledger_points_credited_total",
			Help: "Points credited through the reward ledger.",
		})

		eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_events_published_total",
			Help: "Domain events published, by type and outcome.",
		}, []string{"type", "outcome"})

		leaderboardCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_leaderboard_cache_total",
			Help: "Leaderboard cache lookups, by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			submissionsTotal,
			reviewsTotal,
			reviewConflictsTotal,
			ledgerCreditsTotal,
			ledgerCoinsTotal,
			ledgerPointsTotal,
			eventsPublishedTotal,
			leaderboardCacheTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// SubmissionsCreated counts new submissions.
func SubmissionsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// Reviews counts committed reviews by decision.
func Reviews() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewsTotal
}

// ReviewConflicts counts lost review races.
func ReviewConflicts() prometheus.Counter {
	RegisterMetrics()
	return reviewConflictsTotal
}

// LedgerCredits counts credit attempts by outcome.
func LedgerCredits() *prometheus.CounterVec {
	RegisterMetrics()
	return ledgerCreditsTotal
}

// LedgerCoins tracks credited coins.
func LedgerCoins() prometheus.Counter {
	RegisterMetrics()
	return ledgerCoinsTotal
}

// LedgerPoints tracks credited points.
func LedgerPoints() prometheus.Counter {
	RegisterMetrics()
	return ledgerPointsTotal
}

// EventsPublished counts domain events by type and outcome.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublishedTotal
}

// LeaderboardCache counts leaderboard cache hits and misses.
func LeaderboardCache() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardCacheTotal
}
