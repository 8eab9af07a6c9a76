package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/matchscrape/pkg/recovery"
	"github.com/jmylchreest/matchscrape/pkg/selector"
	"github.com/jmylchreest/matchscrape/pkg/validate"
)

func TestMetrics_Observers(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ctx := context.Background()

	m.OnValidation(ctx, validate.Event{Category: selector.Card, Valid: true, Duration: time.Millisecond})
	m.OnValidation(ctx, validate.Event{Category: selector.Card, Valid: false})
	m.OnValidation(ctx, validate.Event{Category: selector.Score, Valid: false})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("card", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("card", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("score", "false")))

	m.OnAttempt(ctx, recovery.Attempt{Strategy: recovery.ReloadPage, Succeeded: true})
	m.OnAttempt(ctx, recovery.Attempt{Strategy: recovery.ReloadPage, Succeeded: true})
	m.OnAttempt(ctx, recovery.Attempt{Strategy: recovery.AnalyzeDOM})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StrategyInvocations.WithLabelValues("reload-page", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StrategyInvocations.WithLabelValues("analyze-dom-structure", "false")))

	m.OnFinish(ctx, recovery.Result{State: recovery.Exhausted, Attempts: 5})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecoveryRuns.WithLabelValues("exhausted")))
}

func TestMetrics_RecordScrape(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordScrape(12, 3*time.Second, nil)
	m.RecordScrape(0, time.Second, errors.New("navigate failed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.RecordsExtracted))
	assert.Positive(t, testutil.ToFloat64(m.LastScrapeSuccess))
}

func TestMetrics_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.OnFinish(context.Background(), recovery.Result{State: recovery.Healthy, Attempts: 1})

	expected := `
# HELP matchscrape_recovery_runs_total Finished recovery runs by final state
# TYPE matchscrape_recovery_runs_total counter
matchscrape_recovery_runs_total{state="healthy"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "matchscrape_recovery_runs_total"))
}
