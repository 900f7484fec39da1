package ui

import (
	"sync"
	"time"
)

// speedSampleInterval bounds how often throughput samples are taken, so
// rapid per-item Update calls don't turn into noisy speed readings.
const speedSampleInterval = 500 * time.Millisecond

// speedSmoothingFactor weights a new speed sample against the rolling
// average: 0.2 means 20% new value, 80% history.
const speedSmoothingFactor = 0.2

// etaSmoothingFactor weights a freshly computed ETA against the previous
// one, damping the fluctuations batch-to-batch embedding timing causes.
const etaSmoothingFactor = 0.3

// ProgressTracker accumulates progress, timing, and throughput state
// across one indexing stage. Safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	currentFile string
	startTime   time.Time
	stageStart  time.Time
	errors      []ErrorEvent
	warnings    []ErrorEvent
	lastETA     time.Duration

	lastCurrent   int
	lastSpeedCalc time.Time
	currentSpeed  float64
	avgSpeed      float64
	peakSpeed     float64
	speedSamples  int
	sparkline     *Sparkline
}

// SpeedStats is a point-in-time throughput snapshot, in items/sec.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a consistent snapshot of a ProgressTracker's state.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

// sparklineSamples is the number of throughput samples the tracker's
// sparkline keeps, long enough to show roughly thirty seconds of history
// at the speedSampleInterval cadence.
const sparklineSamples = 60

func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:         StageScanning,
		startTime:     now,
		stageStart:    now,
		lastSpeedCalc: now,
		sparkline:     NewSparkline(sparklineSamples),
	}
}

// SetStage transitions to a new stage, resetting progress, ETA smoothing,
// and throughput tracking for it.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.total = total
	p.current = 0
	p.currentFile = ""
	p.stageStart = time.Now()
	p.lastETA = 0

	p.lastCurrent = 0
	p.lastSpeedCalc = time.Now()
	p.currentSpeed = 0
	p.avgSpeed = 0
	p.peakSpeed = 0
	p.speedSamples = 0
	p.sparkline.Clear()
}

// Update advances progress within the current stage and, at most every
// speedSampleInterval, refreshes the throughput estimates.
func (p *ProgressTracker) Update(current int, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if file != "" {
		p.currentFile = file
	}

	now := time.Now()
	if elapsed := now.Sub(p.lastSpeedCalc); elapsed >= speedSampleInterval {
		p.recordSpeedSample(current, elapsed, now)
	}
}

// recordSpeedSample computes items/sec since the last sample and folds it
// into the current/average/peak speed and sparkline history. Must be
// called with mu held.
func (p *ProgressTracker) recordSpeedSample(current int, elapsed time.Duration, now time.Time) {
	delta := current - p.lastCurrent
	if delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		p.currentSpeed = speed

		p.speedSamples++
		if p.speedSamples == 1 {
			p.avgSpeed = speed
		} else {
			p.avgSpeed = speedSmoothingFactor*speed + (1-speedSmoothingFactor)*p.avgSpeed
		}

		if speed > p.peakSpeed {
			p.peakSpeed = speed
		}
		p.sparkline.Add(speed)
	}

	p.lastCurrent = current
	p.lastSpeedCalc = now
}

func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Progress returns completion fraction for the current stage, in [0, 1].
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fractionComplete(p.current, p.total)
}

func fractionComplete(current, total int) float64 {
	if total == 0 {
		return 0.0
	}
	if progress := float64(current) / float64(total); progress <= 1.0 {
		return progress
	}
	return 1.0
}

// ETA estimates remaining time for the current stage via exponential
// smoothing over successive raw estimates.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calculateETA()
}

func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// Stats returns a consistent snapshot of all tracked fields.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    fractionComplete(p.current, p.total),
		ETA:         p.calculateETA(),
		CurrentFile: p.currentFile,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
		Speed: SpeedStats{
			Current: p.currentSpeed,
			Avg:     p.avgSpeed,
			Peak:    p.peakSpeed,
		},
	}
}

// calculateETA projects total stage duration from elapsed time and
// progress fraction, then smooths it against the previous estimate to
// avoid wild swings between batches. Must be called with mu held.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}

	progress := float64(p.current) / float64(p.total)
	if progress <= 0 || progress >= 1.0 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	totalEstimate := time.Duration(float64(elapsed) / progress)
	rawRemaining := totalEstimate - elapsed
	if rawRemaining < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = rawRemaining
		return rawRemaining
	}

	smoothed := time.Duration(
		etaSmoothingFactor*float64(rawRemaining) + (1-etaSmoothingFactor)*float64(p.lastETA),
	)
	p.lastETA = smoothed
	return smoothed
}

func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}

func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]ErrorEvent, len(p.warnings))
	copy(result, p.warnings)
	return result
}

// RenderSparkline renders the throughput history at width, or at the
// tracker's native sample count if width <= 0.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.sparkline == nil {
		return ""
	}
	if width <= 0 {
		return p.sparkline.Render()
	}
	return p.sparkline.RenderWithWidth(width)
}

func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return SpeedStats{Current: p.currentSpeed, Avg: p.avgSpeed, Peak: p.peakSpeed}
}
