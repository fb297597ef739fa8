package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAggregates() *AggregatedMetrics {
	return &AggregatedMetrics{
		TotalRequests:       1000,
		FailedRequests:      20,
		ErrorRate:           0.02,
		DurationMin:         10,
		DurationMax:         900,
		DurationAvg:         200,
		DurationMed:         150,
		DurationP90:         400,
		DurationP95:         450,
		DurationP99:         800,
		RequestsPerSecond:   120,
		IterationsCompleted: 500,
	}
}

// The four-threshold example: one failure makes the run fail.
func TestEvaluateThresholdSuite(t *testing.T) {
	metrics := sampleAggregates()
	thresholds := []Threshold{
		{Metric: "http_req_duration", Condition: "p(95)<500"},
		{Metric: "http_req_duration", Condition: "avg<100"},
		{Metric: "http_req_failed", Condition: "rate<0.05"},
		{Metric: "rps", Condition: ">100"},
	}

	results := make([]ThresholdResult, 0, len(thresholds))
	for _, threshold := range thresholds {
		results = append(results, EvaluateThreshold(threshold, metrics))
	}

	require.Len(t, results, 4)
	assert.True(t, results[0].Passed)
	assert.Equal(t, 450.0, results[0].ActualValue)
	assert.False(t, results[1].Passed)
	assert.Equal(t, 200.0, results[1].ActualValue)
	assert.True(t, results[2].Passed)
	assert.Equal(t, 0.02, results[2].ActualValue)
	assert.True(t, results[3].Passed)
	assert.Equal(t, 120.0, results[3].ActualValue)

	allPassed := true
	for _, result := range results {
		if !result.Passed {
			allPassed = false
		}
	}
	assert.False(t, allPassed)
}

func TestEvaluateThresholdPercentiles(t *testing.T) {
	metrics := sampleAggregates()

	tests := []struct {
		condition string
		actual    float64
		passed    bool
	}{
		{condition: "p(50)<200", actual: 150, passed: true},
		{condition: "p(90)<=400", actual: 400, passed: true},
		{condition: "p(95)>500", actual: 450, passed: false},
		{condition: "p(99)<1000", actual: 800, passed: true},
		{condition: "p(75)<500", actual: 450, passed: true}, // unknown percentile defaults to p95
	}
	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			result := EvaluateThreshold(Threshold{Metric: "duration", Condition: tt.condition}, metrics)
			assert.Equal(t, tt.actual, result.ActualValue)
			assert.Equal(t, tt.passed, result.Passed)
			assert.NotEmpty(t, result.Message)
		})
	}
}

func TestEvaluateThresholdStats(t *testing.T) {
	metrics := sampleAggregates()

	assert.True(t, EvaluateThreshold(Threshold{Metric: "duration", Condition: "avg<300"}, metrics).Passed)
	assert.True(t, EvaluateThreshold(Threshold{Metric: "duration", Condition: "max<1000"}, metrics).Passed)
	assert.True(t, EvaluateThreshold(Threshold{Metric: "duration", Condition: "min>=10"}, metrics).Passed)
	assert.False(t, EvaluateThreshold(Threshold{Metric: "duration", Condition: "med>200"}, metrics).Passed)
}

func TestEvaluateThresholdMetricAliases(t *testing.T) {
	metrics := sampleAggregates()

	for _, alias := range []string{"http_req_failed", "error_rate", "errors"} {
		result := EvaluateThreshold(Threshold{Metric: alias, Condition: "rate<0.05"}, metrics)
		assert.True(t, result.Passed, alias)
		assert.Equal(t, 0.02, result.ActualValue)
	}

	bare := EvaluateThreshold(Threshold{Metric: "error_rate", Condition: "<0.05"}, metrics)
	assert.True(t, bare.Passed)

	iterations := EvaluateThreshold(Threshold{Metric: "iterations", Condition: ">=500"}, metrics)
	assert.True(t, iterations.Passed)
	assert.Equal(t, 500.0, iterations.ActualValue)

	rps := EvaluateThreshold(Threshold{Metric: "requests_per_second", Condition: "!=0"}, metrics)
	assert.True(t, rps.Passed)
}

func TestEvaluateThresholdUnknownsAndInvalid(t *testing.T) {
	metrics := sampleAggregates()

	unknown := EvaluateThreshold(Threshold{Metric: "cpu", Condition: "<1"}, metrics)
	assert.False(t, unknown.Passed)
	assert.Contains(t, unknown.Message, "unknown metric")

	invalid := EvaluateThreshold(Threshold{Metric: "rps", Condition: "about a hundred"}, metrics)
	assert.False(t, invalid.Passed)
	assert.Contains(t, invalid.Message, "invalid condition")
}

// Evaluation is pure: identical inputs produce identical results.
func TestEvaluateThresholdDeterministic(t *testing.T) {
	metrics := sampleAggregates()
	threshold := Threshold{Metric: "http_req_duration", Condition: "p(95)<500"}

	first := EvaluateThreshold(threshold, metrics)
	second := EvaluateThreshold(threshold, metrics)
	assert.Equal(t, first, second)
}
