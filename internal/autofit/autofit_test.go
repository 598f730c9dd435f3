package autofit

import (
	"errors"
	"math"
	"strings"
	"testing"
)

var errMeasure = errors.New("measure failed")

// fakeMeasure behaves like a monospace layout: every rune is 0.6×size wide,
// every line is 1.2×size tall, wrapping on spaces only.
func fakeMeasure(text string, size, maxWidth float64) (Metrics, error) {
	charW := 0.6 * size
	lineH := 1.2 * size

	words := strings.Fields(text)
	if len(words) == 0 {
		return Metrics{Lines: 1, Height: lineH}, nil
	}

	lines := 1
	lineWidth := 0.0
	widest := 0.0
	for _, w := range words {
		wordW := charW * float64(len([]rune(w)))
		sep := 0.0
		if lineWidth > 0 {
			sep = charW
		}
		if lineWidth > 0 && lineWidth+sep+wordW > maxWidth {
			lines++
			lineWidth = wordW
		} else {
			lineWidth += sep + wordW
		}
		widest = math.Max(widest, math.Max(lineWidth, wordW))
	}
	return Metrics{Lines: lines, Height: float64(lines) * lineH, Width: widest}, nil
}

func TestBestFitWithinBounds(t *testing.T) {
	c := Constraints{MinFontSize: 8, MaxFontSize: 120}
	got := BestFit("Hello World", 400, 100, c, fakeMeasure)
	if got < c.MinFontSize || got > c.MaxFontSize {
		t.Fatalf("result %d outside [%d,%d]", got, c.MinFontSize, c.MaxFontSize)
	}

	m, _ := fakeMeasure("Hello World", float64(got), 400-2*c.Padding)
	if m.Height > 100-2 {
		t.Errorf("size %d overflows height: %f", got, m.Height)
	}
}

func TestBestFitMonotonicWithBoxSize(t *testing.T) {
	c := Constraints{MinFontSize: 6, MaxFontSize: 200}
	text := "The quick brown fox jumps over the lazy dog"

	prev := 0
	for _, box := range []struct{ w, h float64 }{
		{100, 40}, {150, 60}, {200, 80}, {300, 120}, {600, 240}, {1200, 480},
	} {
		got := BestFit(text, box.w, box.h, c, fakeMeasure)
		if got < prev {
			t.Errorf("box %gx%g: size %d smaller than previous %d", box.w, box.h, got, prev)
		}
		prev = got
	}
}

func TestBestFitMaxLinesSoftPreference(t *testing.T) {
	text := "aaaa bbbb cccc dddd"

	// Plenty of height: first pass finds a size at or under the line cap.
	relaxed := BestFit(text, 200, 400, Constraints{MinFontSize: 6, MaxFontSize: 80, MaxLines: 2}, fakeMeasure)
	m, _ := fakeMeasure(text, float64(relaxed), 200)
	if m.Lines > 2 {
		t.Errorf("first pass should respect maxLines, got %d lines at size %d", m.Lines, relaxed)
	}

	// Narrow box where the cap is unsatisfiable at any size: the second pass
	// must still produce a fitting size instead of giving up.
	narrow := BestFit(text, 40, 400, Constraints{MinFontSize: 6, MaxFontSize: 80, MaxLines: 1}, fakeMeasure)
	if narrow < 6 || narrow > 80 {
		t.Fatalf("second pass result %d out of range", narrow)
	}
	m, _ = fakeMeasure(text, float64(narrow), 40)
	if m.Height > 400-2 {
		t.Errorf("second pass size %d overflows height", narrow)
	}
}

func TestBestFitNothingFitsReturnsMin(t *testing.T) {
	// A single unbreakable word much wider than the box at every size.
	got := BestFit("Incomprehensibilities", 20, 10, Constraints{MinFontSize: 9, MaxFontSize: 64}, fakeMeasure)
	if got != 9 {
		t.Errorf("expected overflow fallback to min size 9, got %d", got)
	}
}

func TestBestFitEmptyTextReturnsMin(t *testing.T) {
	if got := BestFit("", 100, 100, Constraints{MinFontSize: 12, MaxFontSize: 64}, fakeMeasure); got != 12 {
		t.Errorf("expected min size for empty text, got %d", got)
	}
}

func TestBestFitMeasureErrorFallsBack(t *testing.T) {
	broken := func(string, float64, float64) (Metrics, error) {
		return Metrics{}, errMeasure
	}
	if got := BestFit("text", 100, 100, Constraints{MinFontSize: 10, MaxFontSize: 20}, broken); got != 10 {
		t.Errorf("expected min size when measurement fails, got %d", got)
	}
}
