package fontpack

import (
	"testing"

	"github.com/tdewolff/canvas"
)

func TestStyle(t *testing.T) {
	tests := []struct {
		name   string
		weight int
		italic bool
		want   canvas.FontStyle
	}{
		{"default", 0, false, canvas.FontRegular},
		{"regular", 400, false, canvas.FontRegular},
		{"light", 300, false, canvas.FontLight},
		{"medium", 500, false, canvas.FontMedium},
		{"semibold", 600, false, canvas.FontSemiBold},
		{"bold", 700, false, canvas.FontBold},
		{"extrabold", 800, false, canvas.FontExtraBold},
		{"black", 900, false, canvas.FontBlack},
		{"bold italic", 700, true, canvas.FontBold | canvas.FontItalic},
		{"plain italic", 400, true, canvas.FontRegular | canvas.FontItalic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Style(tt.weight, tt.italic); got != tt.want {
				t.Errorf("Style(%d, %v) = %v, want %v", tt.weight, tt.italic, got, tt.want)
			}
		})
	}
}

func TestClassFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Roboto Mono", classMono},
		{"Courier New", classMono},
		{"Source Code Pro", classMono},
		{"Inter", classSans},
		{"Playfair Display", classSans},
		{"", classSans},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classFor(tt.name); got != tt.want {
				t.Errorf("classFor(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestFileCandidates(t *testing.T) {
	got := fileCandidates("Roboto Slab")
	want := map[string]bool{
		"Roboto Slab.ttf": true,
		"RobotoSlab.ttf":  true,
		"roboto slab.ttf": true,
		"robotoslab.otf":  true,
	}
	found := map[string]bool{}
	for _, c := range got {
		found[c] = true
	}
	for w := range want {
		if !found[w] {
			t.Errorf("expected candidate %q in %v", w, got)
		}
	}
}

func TestFamilyNeverNil(t *testing.T) {
	reg := NewRegistry("", nil)

	fam := reg.Family("No Such Font Anywhere", canvas.FontRegular)
	if fam == nil {
		t.Fatal("expected a fallback family, got nil")
	}

	// Second lookup hits the cache and must return the same family.
	again := reg.Family("No Such Font Anywhere", canvas.FontRegular)
	if fam != again {
		t.Error("expected cached family on second lookup")
	}
}

func TestFaceUsableForMeasurement(t *testing.T) {
	reg := NewRegistry("", nil)

	face := reg.Face("whatever", 16, canvas.Black, 400, false)
	if face == nil {
		t.Fatal("expected a face, got nil")
	}
	if w := face.TextWidth("hello"); w <= 0 {
		t.Errorf("expected positive text width, got %f", w)
	}

	bold := reg.Face("whatever", 16, canvas.Black, 700, false)
	if bold == nil {
		t.Fatal("expected a bold face, got nil")
	}
}
