package performance

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metric(stepID string, durationMs int64, success bool, vuID int, iteration int64) RequestMetric {
	return RequestMetric{
		StepID:     stepID,
		StepName:   "step " + stepID,
		Method:     "GET",
		URL:        "/x",
		Status:     200,
		DurationMs: durationMs,
		Success:    success,
		VUID:       vuID,
		Iteration:  iteration,
	}
}

func TestPercentile(t *testing.T) {
	data := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, int64(6), percentile(data, 50))
	assert.Equal(t, int64(9), percentile(data, 90))
	assert.Equal(t, int64(10), percentile(data, 95))
	assert.Equal(t, int64(10), percentile(data, 99))
	assert.Equal(t, int64(0), percentile(nil, 95))
	assert.Equal(t, int64(7), percentile([]int64{7}, 50))
}

func TestAggregateBasics(t *testing.T) {
	c := NewCollector()
	durations := []int64{100, 200, 300, 400, 500}
	for i, d := range durations {
		c.Record(metric("s1", d, i != 4, 1, int64(i+1)))
	}

	agg := c.Aggregate()
	assert.Equal(t, int64(5), agg.TotalRequests)
	assert.Equal(t, int64(1), agg.FailedRequests)
	assert.InDelta(t, 0.2, agg.ErrorRate, 1e-9)
	assert.Equal(t, int64(100), agg.DurationMin)
	assert.Equal(t, int64(500), agg.DurationMax)
	assert.InDelta(t, 300, agg.DurationAvg, 1e-9)
	assert.Equal(t, int64(300), agg.DurationMed)
	assert.Equal(t, int64(5), agg.IterationsCompleted)
	assert.Positive(t, agg.RequestsPerSecond)

	require.Contains(t, agg.StepMetrics, "s1")
	step := agg.StepMetrics["s1"]
	assert.Equal(t, int64(5), step.TotalRequests)
	assert.Equal(t, "step s1", step.StepName)
}

// Percentiles are ordered and the average sits between min and max.
func TestAggregateOrderingInvariants(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 250; i++ {
		c.Record(metric("s1", int64(i*7%997+1), true, i%5, int64(i/5+1)))
	}

	agg := c.Aggregate()
	assert.LessOrEqual(t, agg.DurationMed, agg.DurationP90)
	assert.LessOrEqual(t, agg.DurationP90, agg.DurationP95)
	assert.LessOrEqual(t, agg.DurationP95, agg.DurationP99)
	assert.LessOrEqual(t, agg.DurationP99, agg.DurationMax)
	assert.LessOrEqual(t, float64(agg.DurationMin), agg.DurationAvg)
	assert.LessOrEqual(t, agg.DurationAvg, float64(agg.DurationMax))
}

func TestAggregateEmpty(t *testing.T) {
	agg := NewCollector().Aggregate()
	assert.Zero(t, agg.TotalRequests)
	assert.Zero(t, agg.ErrorRate)
	assert.NotNil(t, agg.StepMetrics)
	assert.Empty(t, agg.StepMetrics)
}

func TestAggregatePerStepGrouping(t *testing.T) {
	c := NewCollector()
	c.Record(metric("login", 100, true, 1, 1))
	c.Record(metric("login", 300, false, 2, 1))
	c.Record(metric("list", 50, true, 1, 1))

	agg := c.Aggregate()
	require.Len(t, agg.StepMetrics, 2)
	assert.Equal(t, int64(2), agg.StepMetrics["login"].TotalRequests)
	assert.InDelta(t, 0.5, agg.StepMetrics["login"].ErrorRate, 1e-9)
	assert.Equal(t, int64(50), agg.StepMetrics["list"].DurationMin)
}

func TestSnapshotProgress(t *testing.T) {
	c := NewCollector()
	snapshot := c.Snapshot()
	assert.Zero(t, snapshot.TotalRequests)
	assert.Zero(t, snapshot.P95DurationMs)

	for i := 1; i <= 100; i++ {
		c.Record(metric("s1", int64(i), i%10 != 0, 1, int64(i)))
	}

	snapshot = c.Snapshot()
	assert.Equal(t, int64(100), snapshot.TotalRequests)
	assert.Equal(t, int64(10), snapshot.FailedRequests)
	assert.InDelta(t, 0.1, snapshot.ErrorRate, 1e-9)
	assert.Positive(t, snapshot.RPS)
	// Histogram p95 is approximate; 3 significant figures keeps it close.
	assert.InDelta(t, 95, float64(snapshot.P95DurationMs), 2)
	assert.Equal(t, int64(100), snapshot.IterationsCompleted)
}

// Iterations are tracked as the highest observed per VU, summed.
func TestTotalIterationsPerVU(t *testing.T) {
	c := NewCollector()
	c.Record(metric("s1", 10, true, 1, 3))
	c.Record(metric("s1", 10, true, 1, 1))
	c.Record(metric("s1", 10, true, 2, 4))

	assert.Equal(t, int64(7), c.TotalIterations())
}

// Many producers appending concurrently never corrupt the collector.
func TestCollectorConcurrentRecord(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for vu := 0; vu < 8; vu++ {
		wg.Add(1)
		go func(vu int) {
			defer wg.Done()
			for i := 1; i <= 200; i++ {
				c.Record(metric(fmt.Sprintf("s%d", vu%2), int64(i), true, vu, int64(i)))
			}
		}(vu)
	}
	wg.Wait()

	assert.Equal(t, int64(1600), c.Count())
	agg := c.Aggregate()
	assert.Equal(t, int64(1600), agg.TotalRequests)
	assert.Equal(t, int64(8*200), c.TotalIterations())
}
