package scene

import (
	"pinforge/internal/align"
	"pinforge/internal/pkg/errors"
)

// BeginDrag opens a drag gesture for one element. Locked elements refuse to
// drag; a second concurrent gesture is rejected.
func (s *Scene) BeginDrag(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return errDestroyed("scene.begin_drag")
	}
	el, ok := s.byID[id]
	if !ok {
		return errors.NotFound("element", id)
	}
	if el.Locked {
		return errors.New(errors.CodeConflict, "element is locked")
	}
	if s.dragID != "" && s.dragID != id {
		return errors.New(errors.CodeConflict, "another drag is active")
	}
	s.dragID = id
	if s.aligner != nil {
		s.aligner.Begin(id)
	}
	return nil
}

// DragTo moves the dragged element to a prospective position, snapped by
// the alignment engine when one is configured. The returned adjustment
// carries the final geometry and the guides to draw for this frame.
func (s *Scene) DragTo(id string, x, y float64) (align.Adjustment, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return align.Adjustment{}, errDestroyed("scene.drag_to")
	}
	if s.dragID != id {
		s.mu.Unlock()
		return align.Adjustment{}, errors.New(errors.CodeConflict, "no active drag for element")
	}
	el, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return align.Adjustment{}, errors.NotFound("element", id)
	}

	prospective := align.Box{ID: id, X: x, Y: y, W: el.Width, H: el.Height}
	adj := align.Adjustment{Box: prospective}
	if s.aligner != nil {
		adj = s.aligner.Move(prospective)
	}
	el.X = adj.Box.X
	el.Y = adj.Box.Y
	if err := s.binding.UpdatePrimitive(el.Clone()); err != nil {
		s.mu.Unlock()
		return align.Adjustment{}, errors.WrapWithCode(err, errors.CodeInternal, "scene.drag_to", "updating element in binding")
	}
	snapshot := el.Clone()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdated, ID: id, Element: snapshot})
	s.repaint.request()
	return adj, nil
}

// EndDrag closes the gesture and settles the final geometry into the
// alignment index.
func (s *Scene) EndDrag(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragID != id {
		return errors.New(errors.CodeConflict, "no active drag for element")
	}
	s.dragID = ""
	if s.aligner != nil {
		s.aligner.Release()
		if el, ok := s.byID[id]; ok {
			s.aligner.UpsertSibling(boxOf(el))
		}
	}
	return nil
}
