package performance

import (
	"math"
	"time"
)

// Scheduler owns the ordered stage list and a monotonic start instant, and
// answers "how many VUs should be running right now" by linear
// interpolation between stage targets.
type Scheduler struct {
	stages        []Stage
	startTime     time.Time
	totalDuration time.Duration
}

// NewScheduler creates a scheduler over the given stages. The clock starts
// immediately.
func NewScheduler(stages []Stage) *Scheduler {
	var total time.Duration
	for _, stage := range stages {
		total += time.Duration(stage.DurationSecs) * time.Second
	}
	return &Scheduler{
		stages:        stages,
		startTime:     time.Now(),
		totalDuration: total,
	}
}

// FixedScheduler wraps a constant VU count and duration in a single stage.
func FixedScheduler(vus int, durationSecs int64) *Scheduler {
	return NewScheduler([]Stage{{DurationSecs: durationSecs, TargetVUs: vus}})
}

// TotalDuration is the sum of all stage durations.
func (s *Scheduler) TotalDuration() time.Duration {
	return s.totalDuration
}

// Elapsed is the time since the scheduler started.
func (s *Scheduler) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// IsCompleted reports whether all stages have elapsed.
func (s *Scheduler) IsCompleted() bool {
	return s.Elapsed() >= s.totalDuration
}

// Remaining is the time left across all stages.
func (s *Scheduler) Remaining() time.Duration {
	remaining := s.totalDuration - s.Elapsed()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ProgressPercent is overall progress in [0, 100].
func (s *Scheduler) ProgressPercent() float64 {
	if s.totalDuration == 0 {
		return 100
	}
	percent := float64(s.Elapsed()) / float64(s.totalDuration) * 100
	return math.Min(percent, 100)
}

// CurrentStageIndex returns the stage whose cumulative window contains the
// current instant, or false when past the end.
func (s *Scheduler) CurrentStageIndex() (int, bool) {
	return s.stageIndexAt(s.Elapsed())
}

func (s *Scheduler) stageIndexAt(elapsed time.Duration) (int, bool) {
	var accumulated time.Duration
	for index, stage := range s.stages {
		accumulated += time.Duration(stage.DurationSecs) * time.Second
		if elapsed < accumulated {
			return index, true
		}
	}
	return 0, false
}

// StageAt returns the stage at the given index.
func (s *Scheduler) StageAt(index int) (Stage, bool) {
	if index < 0 || index >= len(s.stages) {
		return Stage{}, false
	}
	return s.stages[index], true
}

// TargetVUs is the interpolated VU target for the current instant.
func (s *Scheduler) TargetVUs() int {
	return s.TargetVUsAt(s.Elapsed())
}

// TargetVUsAt computes the VU target at an arbitrary elapsed offset:
// linear interpolation from the previous stage's target (0 before the
// first stage) to the current stage's target across its window. Past the
// end the last stage's target holds.
func (s *Scheduler) TargetVUsAt(elapsed time.Duration) int {
	if len(s.stages) == 0 {
		return 0
	}
	if elapsed <= 0 {
		return 0
	}

	var stageStart time.Duration
	prevTarget := 0
	for _, stage := range s.stages {
		stageEnd := stageStart + time.Duration(stage.DurationSecs)*time.Second

		if elapsed < stageEnd {
			window := stageEnd - stageStart
			if window == 0 {
				return stage.TargetVUs
			}
			progress := float64(elapsed-stageStart) / float64(window)
			target := float64(prevTarget) + (float64(stage.TargetVUs)-float64(prevTarget))*progress
			return int(math.Round(target))
		}

		prevTarget = stage.TargetVUs
		stageStart = stageEnd
	}

	return s.stages[len(s.stages)-1].TargetVUs
}

// DetectTransition returns the active stage index when it differs from the
// previously observed one. prev of -1 means "no stage seen yet".
func (s *Scheduler) DetectTransition(prev int) (int, bool) {
	current, ok := s.CurrentStageIndex()
	if !ok {
		return 0, false
	}
	if current != prev {
		return current, true
	}
	return 0, false
}

// Canonical stage lists for the test-type presets.

// SmokeStages is a short sanity check with a couple of VUs.
func SmokeStages() []Stage {
	return []Stage{{DurationSecs: 30, TargetVUs: 2}}
}

// LoadStages ramps to the target, sustains it, then ramps back down.
func LoadStages(targetVUs int, sustainMinutes int64) []Stage {
	return []Stage{
		{DurationSecs: 120, TargetVUs: targetVUs},
		{DurationSecs: sustainMinutes * 60, TargetVUs: targetVUs},
		{DurationSecs: 120, TargetVUs: 0},
	}
}

// StressStages climbs toward the maximum in quarters to find the breaking
// point.
func StressStages(maxVUs int) []Stage {
	return []Stage{
		{DurationSecs: 120, TargetVUs: maxVUs / 4},
		{DurationSecs: 120, TargetVUs: maxVUs / 2},
		{DurationSecs: 120, TargetVUs: maxVUs * 3 / 4},
		{DurationSecs: 120, TargetVUs: maxVUs},
		{DurationSecs: 120, TargetVUs: 0},
	}
}

// SpikeStages jumps from a base level to a spike, holds it, then recovers.
func SpikeStages(baseVUs, spikeVUs int) []Stage {
	return []Stage{
		{DurationSecs: 10, TargetVUs: baseVUs},
		{DurationSecs: 10, TargetVUs: spikeVUs},
		{DurationSecs: 30, TargetVUs: spikeVUs},
		{DurationSecs: 60, TargetVUs: baseVUs},
	}
}

// SoakStages sustains a steady level for hours to expose leaks.
func SoakStages(vus int, hours int64) []Stage {
	return []Stage{
		{DurationSecs: 300, TargetVUs: vus},
		{DurationSecs: hours * 3600, TargetVUs: vus},
		{DurationSecs: 300, TargetVUs: 0},
	}
}
