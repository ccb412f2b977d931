package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_commands_total",
		Help: "Ledger commands by type and outcome.",
	}, []string{"command", "outcome"})

	CommissionPostings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_commission_postings_total",
		Help: "Referral commission postings by outcome.",
	}, []string{"outcome"})

	CASRetriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_cas_retries_exhausted_total",
		Help: "Commands that gave up after the bounded CAS retry budget.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
