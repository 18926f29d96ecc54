package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/transcribot/transcribot/internal/database"
	"github.com/transcribot/transcribot/internal/logger"
)

const storeQueryTimeout = 5 * time.Second

// StatsSource reports totals kept in the database
type StatsSource interface {
	GetGlobalStats(ctx context.Context, today string) (*database.GlobalStats, error)
}

// storeCollector queries the database once per scrape
type storeCollector struct {
	source StatsSource
	today  func() string

	users      *prometheus.Desc
	subscribed *prometheus.Desc
	jobsToday  *prometheus.Desc
	jobsStored *prometheus.Desc
}

// RegisterStore exports user and job totals from source. today returns
// the usage day key for the quota time zone.
func (c *Collector) RegisterStore(source StatsSource, today func() string) error {
	return c.registry.Register(&storeCollector{
		source:     source,
		today:      today,
		users:      prometheus.NewDesc(namespace+"_users", "Known users", nil, nil),
		subscribed: prometheus.NewDesc(namespace+"_subscribed_users", "Users with the subscribed flag set", nil, nil),
		jobsToday:  prometheus.NewDesc(namespace+"_jobs_today", "Jobs charged against today's quota", nil, nil),
		jobsStored: prometheus.NewDesc(namespace+"_jobs_recorded", "Jobs in the request history", nil, nil),
	})
}

func (s *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.users
	ch <- s.subscribed
	ch <- s.jobsToday
	ch <- s.jobsStored
}

func (s *storeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), storeQueryTimeout)
	defer cancel()

	stats, err := s.source.GetGlobalStats(ctx, s.today())
	if err != nil {
		logger.Warn("Failed to collect database stats", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	ch <- prometheus.MustNewConstMetric(s.users, prometheus.GaugeValue, float64(stats.TotalUsers))
	ch <- prometheus.MustNewConstMetric(s.subscribed, prometheus.GaugeValue, float64(stats.SubscribedUsers))
	ch <- prometheus.MustNewConstMetric(s.jobsToday, prometheus.GaugeValue, float64(stats.JobsToday))
	ch <- prometheus.MustNewConstMetric(s.jobsStored, prometheus.GaugeValue, float64(stats.TotalJobs))
}
