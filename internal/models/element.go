package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ElementKind discriminates the closed set of element payloads.
type ElementKind string

const (
	KindText  ElementKind = "text"
	KindImage ElementKind = "image"
	KindShape ElementKind = "shape"
	KindFrame ElementKind = "frame"
)

// TextTransform is applied to the fully resolved text, after substitution.
type TextTransform string

const (
	TransformNone       TextTransform = "none"
	TransformUppercase  TextTransform = "uppercase"
	TransformLowercase  TextTransform = "lowercase"
	TransformCapitalize TextTransform = "capitalize"
)

type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

// FitMode controls how an image is mapped into its box.
type FitMode string

const (
	FitFill    FitMode = "fill"
	FitCover   FitMode = "cover"
	FitContain FitMode = "contain"
)

type ShapeKind string

const (
	ShapeRect   ShapeKind = "rect"
	ShapeCircle ShapeKind = "circle"
	ShapePath   ShapeKind = "path"
)

// Element is one visual primitive on the canvas. Exactly one payload pointer
// is set, and it must match Kind. x,y is the top-left of the untransformed
// bounding box; rotation is degrees about the element's own center; opacity
// multiplies the final alpha of everything the element paints.
type Element struct {
	ID       string      `json:"id"`
	Name     string      `json:"name,omitempty"`
	Kind     ElementKind `json:"type"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Rotation float64     `json:"rotation,omitempty"`
	Opacity  float64     `json:"opacity"`
	Locked   bool        `json:"locked,omitempty"`
	Visible  bool        `json:"visible"`
	ZIndex   int         `json:"zIndex"`

	Text  *TextElement  `json:"text,omitempty"`
	Image *ImageElement `json:"image,omitempty"`
	Shape *ShapeElement `json:"shape,omitempty"`
	Frame *FrameElement `json:"frame,omitempty"`
}

// TextElement carries the text payload. Colors are hex strings ("#rrggbb" or
// "#rrggbbaa"); FontWeight uses CSS numeric weights (400 regular, 700 bold).
type TextElement struct {
	Text          string        `json:"text"`
	Dynamic       bool          `json:"dynamic,omitempty"`
	Field         string        `json:"field,omitempty"`
	FontFamily    string        `json:"fontFamily"`
	FontSize      float64       `json:"fontSize"`
	FontWeight    int           `json:"fontWeight,omitempty"`
	Italic        bool          `json:"italic,omitempty"`
	Fill          string        `json:"fill"`
	Stroke        string        `json:"stroke,omitempty"`
	StrokeWidth   float64       `json:"strokeWidth,omitempty"`
	Hollow        bool          `json:"hollow,omitempty"`
	Shadow        *Shadow       `json:"shadow,omitempty"`
	Align         TextAlign     `json:"align,omitempty"`
	LineHeight    float64       `json:"lineHeight,omitempty"`
	LetterSpacing float64       `json:"letterSpacing,omitempty"`
	Transform     TextTransform `json:"transform,omitempty"`

	AutoFit        bool    `json:"autoFit,omitempty"`
	MinFontSize    int     `json:"minFontSize,omitempty"`
	MaxFontSize    int     `json:"maxFontSize,omitempty"`
	AutoFitPadding float64 `json:"autoFitPadding,omitempty"`
	MaxLines       int     `json:"maxLines,omitempty"`

	Background *TextBackground `json:"background,omitempty"`
	Spans      []StyleSpan     `json:"spans,omitempty"`
}

type Shadow struct {
	Color   string  `json:"color"`
	Blur    float64 `json:"blur,omitempty"`
	OffsetX float64 `json:"offsetX,omitempty"`
	OffsetY float64 `json:"offsetY,omitempty"`
}

// TextBackground is the chip painted behind the text block, sized to the text
// box plus Padding on all sides.
type TextBackground struct {
	Color        string  `json:"color"`
	Padding      float64 `json:"padding,omitempty"`
	CornerRadius float64 `json:"cornerRadius,omitempty"`
}

// StyleSpan overrides style over a rune range of the displayed text.
// Start and End are inclusive rune indices. Zero-valued override fields mean
// "inherit"; Italic uses a pointer so false is a real override.
type StyleSpan struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Fill       string `json:"fill,omitempty"`
	FontWeight int    `json:"fontWeight,omitempty"`
	Italic     *bool  `json:"italic,omitempty"`
}

type ImageElement struct {
	URL          string  `json:"url"`
	Dynamic      bool    `json:"dynamic,omitempty"`
	Field        string  `json:"field,omitempty"`
	Fit          FitMode `json:"fit,omitempty"`
	CornerRadius float64 `json:"cornerRadius,omitempty"`
}

type ShapeElement struct {
	Shape        ShapeKind `json:"shape"`
	Path         string    `json:"path,omitempty"`
	Fill         string    `json:"fill,omitempty"`
	Stroke       string    `json:"stroke,omitempty"`
	StrokeWidth  float64   `json:"strokeWidth,omitempty"`
	CornerRadius float64   `json:"cornerRadius,omitempty"`
}

// FrameElement is a visual guide boundary; it never participates in
// interaction or data binding.
type FrameElement struct {
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Fill        string  `json:"fill,omitempty"`
}

// UnmarshalJSON fills in authoring defaults for keys editors may omit:
// an absent opacity means fully opaque and an absent visible means shown.
func (e *Element) UnmarshalJSON(data []byte) error {
	type alias Element
	aux := struct {
		Opacity *float64 `json:"opacity"`
		Visible *bool    `json:"visible"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Opacity == nil {
		e.Opacity = 1
	} else {
		e.Opacity = *aux.Opacity
	}
	if aux.Visible == nil {
		e.Visible = true
	} else {
		e.Visible = *aux.Visible
	}
	return nil
}

// Validate checks the tagged-union invariant: a known kind with exactly the
// matching payload set.
func (e *Element) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("element missing id")
	}
	set := 0
	if e.Text != nil {
		set++
	}
	if e.Image != nil {
		set++
	}
	if e.Shape != nil {
		set++
	}
	if e.Frame != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("element %s: want exactly one payload, got %d", e.ID, set)
	}
	switch e.Kind {
	case KindText:
		if e.Text == nil {
			return fmt.Errorf("element %s: type %q without text payload", e.ID, e.Kind)
		}
	case KindImage:
		if e.Image == nil {
			return fmt.Errorf("element %s: type %q without image payload", e.ID, e.Kind)
		}
	case KindShape:
		if e.Shape == nil {
			return fmt.Errorf("element %s: type %q without shape payload", e.ID, e.Kind)
		}
		if e.Shape.Shape == ShapePath && e.Shape.Path == "" {
			return fmt.Errorf("element %s: path shape without path data", e.ID)
		}
	case KindFrame:
		if e.Frame == nil {
			return fmt.Errorf("element %s: type %q without frame payload", e.ID, e.Kind)
		}
	default:
		return fmt.Errorf("element %s: unknown type %q", e.ID, e.Kind)
	}
	return nil
}

// Clone returns a deep copy. Per-row rendering always works on clones so no
// element instance is ever shared between two rows.
func (e *Element) Clone() *Element {
	c := *e
	if e.Text != nil {
		t := *e.Text
		if e.Text.Shadow != nil {
			s := *e.Text.Shadow
			t.Shadow = &s
		}
		if e.Text.Background != nil {
			b := *e.Text.Background
			t.Background = &b
		}
		if len(e.Text.Spans) > 0 {
			t.Spans = make([]StyleSpan, len(e.Text.Spans))
			copy(t.Spans, e.Text.Spans)
			for i, sp := range e.Text.Spans {
				if sp.Italic != nil {
					v := *sp.Italic
					t.Spans[i].Italic = &v
				}
			}
		}
		c.Text = &t
	}
	if e.Image != nil {
		img := *e.Image
		c.Image = &img
	}
	if e.Shape != nil {
		s := *e.Shape
		c.Shape = &s
	}
	if e.Frame != nil {
		f := *e.Frame
		c.Frame = &f
	}
	return &c
}

// Center returns the rotation pivot of the untransformed box.
func (e *Element) Center() (float64, float64) {
	return e.X + e.Width/2, e.Y + e.Height/2
}

// NormalizeSpans sorts spans by start, clamps them to the rune length of the
// displayed text, and trims overlaps so the result is strictly
// non-overlapping with inclusive ends. Spans left empty by clamping are
// dropped.
func NormalizeSpans(spans []StyleSpan, runeLen int) []StyleSpan {
	if len(spans) == 0 || runeLen <= 0 {
		return nil
	}
	out := make([]StyleSpan, 0, len(spans))
	for _, sp := range spans {
		if sp.Start < 0 {
			sp.Start = 0
		}
		if sp.End > runeLen-1 {
			sp.End = runeLen - 1
		}
		if sp.End < sp.Start {
			continue
		}
		out = append(out, sp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	norm := out[:0]
	for _, sp := range out {
		if len(norm) > 0 {
			prev := &norm[len(norm)-1]
			if sp.Start <= prev.End {
				sp.Start = prev.End + 1
				if sp.Start > sp.End {
					continue
				}
			}
		}
		norm = append(norm, sp)
	}
	if len(norm) == 0 {
		return nil
	}
	return norm
}
