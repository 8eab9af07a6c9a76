package commands

import (
	"context"
	"time"

	"github.com/spf13/viper"

	"github.com/jmylchreest/matchscrape/internal/job"
	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/internal/metrics"
	"github.com/jmylchreest/matchscrape/internal/results"
	"github.com/jmylchreest/matchscrape/pkg/matchscrape"
)

// refresher performs one scheduled or requested scrape and stores it.
type refresher struct {
	v       *viper.Viper
	src     pageSource
	store   *results.Store
	metrics *metrics.Metrics
}

// run is a job.Func.
func (r *refresher) run(ctx context.Context) (job.Outcome, error) {
	start := time.Now()
	out, err := r.scrape(ctx)
	r.metrics.RecordScrape(out.Records, time.Since(start), err)
	return out, err
}

func (r *refresher) scrape(ctx context.Context) (job.Outcome, error) {
	s, err := openSession(ctx, r.v, r.src,
		matchscrape.WithValidationObserver(r.metrics),
		matchscrape.WithRecoveryObserver(r.metrics))
	if err != nil {
		return job.Outcome{}, err
	}
	defer func() { _ = s.Close() }()

	res, err := s.Scrape(ctx)
	if err != nil {
		return job.Outcome{}, err
	}
	if err := s.SaveHistory(); err != nil {
		logger.Warn("failed to save selector history", "error", err)
	}
	day, err := r.store.Save(res.Records, s.ID(), s.URL())
	if err != nil {
		return job.Outcome{}, err
	}
	return job.Outcome{
		Date:    day.Date,
		Records: day.Total,
		Healthy: res.Recovery.Succeeded,
	}, nil
}
