package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	CampaignOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_campaigns_finished_total",
			Help: "Total number of finished campaigns by terminal status.",
		},
		[]string{"status"},
	)
	TimeToFill = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outreach_time_to_fill_seconds",
			Help:    "Time from campaign start to the winning acceptance.",
			Buckets: []float64{30, 60, 300, 900, 1800, 3600, 7200},
		},
	)
	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_messages_sent_total",
			Help: "Total number of outbound messages by channel, kind and result.",
		},
		[]string{"channel", "kind", "result"},
	)
	ClassifiedResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_responses_classified_total",
			Help: "Total number of inbound responses by classified intent.",
		},
		[]string{"intent"},
	)
	LockConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_lock_conflicts_total",
			Help: "Total number of openings skipped because another holder owned the lock.",
		},
	)
	ActiveCampaigns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "outreach_campaigns_active",
			Help: "Number of campaigns currently running.",
		},
	)
)

// Register adds every collector to the default registry. It must be called once.
func Register() {
	prometheus.MustRegister(ErrorsCounter)
	prometheus.MustRegister(CampaignOutcomes)
	prometheus.MustRegister(TimeToFill)
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(ClassifiedResponses)
	prometheus.MustRegister(LockConflicts)
	prometheus.MustRegister(ActiveCampaigns)
}
