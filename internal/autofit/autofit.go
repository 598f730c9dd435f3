// Package autofit picks the largest integer font size that keeps a text
// block inside a fixed box. Measurement is pluggable so the headless
// renderer, the interactive adapter, and tests can supply their own
// text-measurement function, provided the measurer wraps on word
// boundaries exactly like the paint path does.
package autofit

import "math"

// Metrics describes one measured layout of a text block at a candidate size.
type Metrics struct {
	// Lines is the wrapped line count.
	Lines int
	// Height is the total rendered height including line gaps.
	Height float64
	// Width is the widest wrapped line. It can exceed the wrap width when a
	// single word is wider than the box, since wrapping never splits words.
	Width float64
}

// MeasureFunc lays out text at fontSize wrapped to maxWidth. It must use the
// same word-boundary wrap policy as the final paint; a measurement pass with
// a different wrap policy invalidates the whole search.
type MeasureFunc func(text string, fontSize float64, maxWidth float64) (Metrics, error)

// Constraints bound the search. MaxLines is a soft preference: it is honored
// in the first pass and dropped in the second.
type Constraints struct {
	MinFontSize int
	MaxFontSize int
	// Padding is subtracted from both box dimensions before fitting.
	Padding float64
	// MaxLines limits the wrapped line count; 0 means no preference.
	MaxLines int
	// HeightSafety is subtracted from the padded height to absorb
	// measurement rounding at borderline sizes. Defaults to 2.
	HeightSafety float64
}

const (
	defaultMinFontSize  = 6
	defaultMaxFontSize  = 200
	defaultHeightSafety = 2.0
	maxIterations       = 30
)

func (c Constraints) sanitized() Constraints {
	if c.MinFontSize <= 0 {
		c.MinFontSize = defaultMinFontSize
	}
	if c.MaxFontSize <= 0 {
		c.MaxFontSize = defaultMaxFontSize
	}
	if c.MaxFontSize < c.MinFontSize {
		c.MaxFontSize = c.MinFontSize
	}
	if c.HeightSafety <= 0 {
		c.HeightSafety = defaultHeightSafety
	}
	return c
}

// BestFit returns the largest font size in [MinFontSize, MaxFontSize] whose
// measured layout fits the padded box. Two binary-search passes: the first
// also requires the line count to respect MaxLines, the second ignores
// MaxLines. When nothing fits at all the minimum size is returned: overflow
// is allowed rather than erroring, and the result is always clamped to the
// constraint range.
func BestFit(text string, boxWidth, boxHeight float64, c Constraints, measure MeasureFunc) int {
	c = c.sanitized()

	wrapWidth := boxWidth - 2*c.Padding
	fitHeight := boxHeight - 2*c.Padding - c.HeightSafety
	if text == "" || wrapWidth <= 0 || fitHeight <= 0 || measure == nil {
		return c.MinFontSize
	}

	fits := func(size int, respectMaxLines bool) bool {
		m, err := measure(text, float64(size), wrapWidth)
		if err != nil {
			return false
		}
		if m.Height > fitHeight || m.Width > wrapWidth {
			return false
		}
		if respectMaxLines && c.MaxLines > 0 && m.Lines > c.MaxLines {
			return false
		}
		return true
	}

	if best := search(c.MinFontSize, c.MaxFontSize, func(s int) bool { return fits(s, true) }); best > 0 {
		return clamp(best, c.MinFontSize, c.MaxFontSize)
	}
	if c.MaxLines > 0 {
		if best := search(c.MinFontSize, c.MaxFontSize, func(s int) bool { return fits(s, false) }); best > 0 {
			return clamp(best, c.MinFontSize, c.MaxFontSize)
		}
	}
	return c.MinFontSize
}

// search finds the largest size in [lo, hi] satisfying fits, assuming
// monotonicity: a larger size renders taller and never narrower.
func search(lo, hi int, fits func(int) bool) int {
	best := -1
	for iter := 0; lo <= hi && iter < maxIterations; iter++ {
		mid := lo + (hi-lo)/2
		if fits(mid) {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best < 0 {
		return -1
	}
	return best
}

func clamp(v, lo, hi int) int {
	return int(math.Min(math.Max(float64(v), float64(lo)), float64(hi)))
}
