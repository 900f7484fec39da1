package ui

import "strings"

// sparklineChars are the eight Unicode block levels used to render a
// sparkline bar, from empty to full.
var sparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders a fixed-width ring buffer of samples as a row of
// Unicode block characters, for showing recent throughput at a glance.
type Sparkline struct {
	samples []float64
	width   int
	head    int
	count   int
	max     float64
}

// NewSparkline creates a sparkline holding up to width samples.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{
		samples: make([]float64, width),
		width:   width,
	}
}

// Add records a new sample, evicting the oldest once the buffer is full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.width
	s.count++

	if value > s.max {
		s.max = value
	}
	// Periodically recompute max from scratch so a sustained drop in
	// values isn't stuck scaled against a long-evicted peak.
	if s.count%s.width == 0 {
		s.recalculateMax()
	}
}

func (s *Sparkline) recalculateMax() {
	s.max = 0
	for _, v := range s.samples {
		if v > s.max {
			s.max = v
		}
	}
	if s.max < 1 {
		s.max = 1
	}
}

// Render returns the sparkline at its native width.
func (s *Sparkline) Render() string {
	return s.render(s.width)
}

// RenderWithWidth returns the sparkline showing only its most recent
// width samples, for adapting to a narrower terminal. Widths at or above
// the native sample count fall back to Render.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 || width >= s.width {
		return s.Render()
	}
	return s.render(width)
}

// render draws the most recent min(count, width) samples into a string of
// length width, oldest to newest, padding with spaces where history is
// shorter than the requested width. With no samples at all, every cell
// is the lowest block character.
func (s *Sparkline) render(width int) string {
	if s.count == 0 {
		return strings.Repeat(string(sparklineChars[0]), width)
	}
	if s.max <= 0 {
		s.recalculateMax()
	}

	numSamples := min(s.count, s.width)
	skip := 0
	if numSamples > width {
		skip = numSamples - width
	}
	start := 0
	if s.count >= s.width {
		start = s.head
	}

	var sb strings.Builder
	sb.Grow(width * 3)

	rendered := 0
	for i := 0; i < s.width && rendered < width; i++ {
		if i < skip {
			continue
		}
		idx := (start + i) % s.width
		switch {
		case i >= numSamples && s.count < s.width:
			sb.WriteRune(' ')
		default:
			sb.WriteRune(s.charFor(s.samples[idx]))
		}
		rendered++
	}
	for rendered < width {
		sb.WriteRune(' ')
		rendered++
	}

	return sb.String()
}

// charFor maps a sample to one of the eight block levels, scaled against
// the buffer's current maximum.
func (s *Sparkline) charFor(value float64) rune {
	if s.max <= 0 {
		return sparklineChars[0]
	}
	idx := int(value / s.max * float64(len(sparklineChars)-1))
	switch {
	case idx < 0:
		idx = 0
	case idx >= len(sparklineChars):
		idx = len(sparklineChars) - 1
	}
	return sparklineChars[idx]
}

func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
	s.max = 0
}

func (s *Sparkline) Count() int {
	return s.count
}

func (s *Sparkline) Max() float64 {
	return s.max
}
