package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stage interpolation across [(10s,10), (10s,10), (10s,0)]: ramp up from
// zero, hold, ramp down, then stay at the final target.
func TestTargetVUsInterpolation(t *testing.T) {
	scheduler := NewScheduler([]Stage{
		{DurationSecs: 10, TargetVUs: 10},
		{DurationSecs: 10, TargetVUs: 10},
		{DurationSecs: 10, TargetVUs: 0},
	})

	tests := []struct {
		at     time.Duration
		target int
	}{
		{at: 0, target: 0},
		{at: 5 * time.Second, target: 5},
		{at: 10 * time.Second, target: 10},
		{at: 15 * time.Second, target: 10},
		{at: 25 * time.Second, target: 5},
		{at: 30 * time.Second, target: 0},
		{at: 45 * time.Second, target: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.target, scheduler.TargetVUsAt(tt.at), "at %v", tt.at)
	}
}

// target_vus is monotone piecewise-linear and hits each stage's declared
// target at the end of that stage.
func TestTargetVUsHitsStageTargets(t *testing.T) {
	stages := []Stage{
		{DurationSecs: 4, TargetVUs: 8},
		{DurationSecs: 6, TargetVUs: 2},
		{DurationSecs: 2, TargetVUs: 12},
	}
	scheduler := NewScheduler(stages)

	var cumulative time.Duration
	for _, stage := range stages {
		cumulative += time.Duration(stage.DurationSecs) * time.Second
		assert.Equal(t, stage.TargetVUs, scheduler.TargetVUsAt(cumulative))
	}

	// Monotone within the first (rising) stage.
	prev := scheduler.TargetVUsAt(0)
	for at := time.Second; at <= 4*time.Second; at += time.Second {
		current := scheduler.TargetVUsAt(at)
		assert.GreaterOrEqual(t, current, prev)
		prev = current
	}
}

func TestCurrentStageIndex(t *testing.T) {
	scheduler := NewScheduler([]Stage{
		{DurationSecs: 10, TargetVUs: 10},
		{DurationSecs: 10, TargetVUs: 0},
	})

	index, ok := scheduler.stageIndexAt(3 * time.Second)
	require.True(t, ok)
	assert.Equal(t, 0, index)

	index, ok = scheduler.stageIndexAt(15 * time.Second)
	require.True(t, ok)
	assert.Equal(t, 1, index)

	_, ok = scheduler.stageIndexAt(25 * time.Second)
	assert.False(t, ok)
}

// The last-stage transition is detected exactly once across repeated polls.
func TestDetectTransitionOnce(t *testing.T) {
	scheduler := NewScheduler([]Stage{
		{DurationSecs: 0, TargetVUs: 5},
		{DurationSecs: 3600, TargetVUs: 5},
	})

	last := -1
	transitions := 0
	for i := 0; i < 10; i++ {
		if index, changed := scheduler.DetectTransition(last); changed {
			last = index
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)
	assert.Equal(t, 1, last)
}

func TestFixedScheduler(t *testing.T) {
	scheduler := FixedScheduler(10, 60)
	assert.Equal(t, time.Minute, scheduler.TotalDuration())
	assert.Equal(t, 0, scheduler.TargetVUsAt(0))
	assert.Equal(t, 5, scheduler.TargetVUsAt(30*time.Second))
	assert.Equal(t, 10, scheduler.TargetVUsAt(60*time.Second))
	assert.False(t, scheduler.IsCompleted())
}

func TestSchedulerProgressAndRemaining(t *testing.T) {
	scheduler := NewScheduler([]Stage{{DurationSecs: 3600, TargetVUs: 1}})
	assert.Less(t, scheduler.ProgressPercent(), 1.0)
	assert.Greater(t, scheduler.Remaining(), 59*time.Minute)

	empty := NewScheduler(nil)
	assert.True(t, empty.IsCompleted())
	assert.Equal(t, 100.0, empty.ProgressPercent())
	assert.Equal(t, 0, empty.TargetVUsAt(time.Second))
}

func TestStagePresets(t *testing.T) {
	smoke := SmokeStages()
	require.Len(t, smoke, 1)
	assert.Equal(t, 2, smoke[0].TargetVUs)

	load := LoadStages(50, 10)
	require.Len(t, load, 3)
	assert.Equal(t, 50, load[0].TargetVUs)
	assert.Equal(t, int64(600), load[1].DurationSecs)
	assert.Equal(t, 0, load[2].TargetVUs)

	stress := StressStages(100)
	require.Len(t, stress, 5)
	assert.Equal(t, 25, stress[0].TargetVUs)
	assert.Equal(t, 100, stress[3].TargetVUs)

	spike := SpikeStages(5, 50)
	require.Len(t, spike, 4)
	assert.Equal(t, 50, spike[2].TargetVUs)

	soak := SoakStages(10, 2)
	require.Len(t, soak, 3)
	assert.Equal(t, int64(7200), soak[1].DurationSecs)
}
