package models

import (
	"fmt"
	"sort"
	"time"
)

// Template is an authored design: a fixed canvas plus an ordered element
// list. The rendering engine only ever reads templates; per-row output is
// produced from clones.
type Template struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Background string     `json:"background,omitempty"`
	Elements   []Element  `json:"elements"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

func (t *Template) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("template %s: invalid canvas size %dx%d", t.ID, t.Width, t.Height)
	}
	seen := make(map[string]struct{}, len(t.Elements))
	for i := range t.Elements {
		el := &t.Elements[i]
		if err := el.Validate(); err != nil {
			return err
		}
		if _, dup := seen[el.ID]; dup {
			return fmt.Errorf("template %s: duplicate element id %s", t.ID, el.ID)
		}
		seen[el.ID] = struct{}{}
	}
	return nil
}

// PaintList returns pointers to the visible elements in paint order:
// ascending zIndex, ties keeping list order. Invisible elements are excluded
// entirely (not painted, not measured).
func (t *Template) PaintList() []*Element {
	out := make([]*Element, 0, len(t.Elements))
	for i := range t.Elements {
		if t.Elements[i].Visible {
			out = append(out, &t.Elements[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// Clone deep-copies the template including every element payload.
func (t *Template) Clone() *Template {
	c := *t
	if t.DeletedAt != nil {
		d := *t.DeletedAt
		c.DeletedAt = &d
	}
	c.Elements = make([]Element, len(t.Elements))
	for i := range t.Elements {
		c.Elements[i] = *t.Elements[i].Clone()
	}
	return &c
}
