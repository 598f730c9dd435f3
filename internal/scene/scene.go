// Package scene is the interactive adapter: a live, mutable scene graph
// bound to a canvas library through the Binding port. It owns element
// add/update/remove/reorder, emits change events, coalesces repaints into a
// frame budget and runs the async image load state machine. One scene
// mutation happens at a time; all methods serialize on an internal mutex.
//
// The binding must not call back into the scene from its own methods.
package scene

import (
	"sort"
	"sync"
	"time"

	"pinforge/internal/align"
	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"
	"pinforge/internal/pkg/logger"
)

// Binding is the canvas/scene library port. Implementations draw primitives
// and repaint on request; they never own element state.
type Binding interface {
	AddPrimitive(el *models.Element) error
	UpdatePrimitive(el *models.Element) error
	RemovePrimitive(id string) error
	ReorderPrimitives(ids []string) error
	RequestRepaint()
}

// ChangeKind classifies a scene mutation for subscribers.
type ChangeKind string

const (
	ChangeAdded         ChangeKind = "added"
	ChangeUpdated       ChangeKind = "updated"
	ChangeRemoved       ChangeKind = "removed"
	ChangeReordered     ChangeKind = "reordered"
	ChangeImageLoading  ChangeKind = "image_loading"
	ChangeImageResolved ChangeKind = "image_resolved"
	ChangeImageFailed   ChangeKind = "image_failed"
)

// Change describes one mutation. Element is a snapshot clone (nil for
// removals and reorders); Order carries the new id order for reorders.
type Change struct {
	Kind    ChangeKind
	ID      string
	Element *models.Element
	Order   []string
}

// ChangeHandler receives changes synchronously on the mutating goroutine.
type ChangeHandler func(Change)

// Config tunes a scene instance.
type Config struct {
	FrameBudget time.Duration
	Images      ImageSource
	Align       *align.Engine
	Log         *logger.Logger
}

// Scene is the live scene graph for one editing session.
type Scene struct {
	mu        sync.Mutex
	binding   Binding
	log       *logger.Logger
	width     float64
	height    float64
	elements  []*models.Element // ascending zIndex
	byID      map[string]*models.Element
	handlers  []ChangeHandler
	repaint   *repaintScheduler
	images    ImageSource
	loads     map[string]*imageLoad
	aligner   *align.Engine
	dragID    string
	destroyed bool
}

// New builds a scene from a validated template, registering every element
// with the binding. The template itself is never mutated.
func New(binding Binding, tpl *models.Template, cfg Config) (*Scene, error) {
	if binding == nil {
		return nil, errors.Validation("scene binding is required")
	}
	if tpl == nil {
		return nil, errors.Validation("template is required")
	}
	if err := tpl.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "scene.new", "invalid template")
	}
	log := cfg.Log
	if log == nil {
		log = logger.NewDefault()
	}

	s := &Scene{
		binding: binding,
		log:     log.WithComponent("scene"),
		width:   float64(tpl.Width),
		height:  float64(tpl.Height),
		byID:    make(map[string]*models.Element, len(tpl.Elements)),
		images:  cfg.Images,
		loads:   make(map[string]*imageLoad),
		aligner: cfg.Align,
	}
	s.repaint = newRepaintScheduler(cfg.FrameBudget, binding.RequestRepaint)

	ordered := make([]*models.Element, 0, len(tpl.Elements))
	for i := range tpl.Elements {
		ordered = append(ordered, tpl.Elements[i].Clone())
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ZIndex < ordered[j].ZIndex })
	for _, el := range ordered {
		if err := binding.AddPrimitive(el.Clone()); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeInternal, "scene.new", "registering element with binding")
		}
		s.elements = append(s.elements, el)
		s.byID[el.ID] = el
	}
	s.syncAligner()
	return s, nil
}

// OnChange subscribes a handler to every subsequent mutation.
func (s *Scene) OnChange(h ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Add inserts a new element. A zero zIndex places it on top.
func (s *Scene) Add(el *models.Element) error {
	if el == nil {
		return errors.Validation("element is required")
	}
	if err := el.Validate(); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "scene.add", "invalid element")
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return errDestroyed("scene.add")
	}
	if _, dup := s.byID[el.ID]; dup {
		s.mu.Unlock()
		return errors.AlreadyExists("element", el.ID)
	}

	own := el.Clone()
	if own.ZIndex == 0 {
		own.ZIndex = s.topZ() + 1
	}
	if err := s.binding.AddPrimitive(own.Clone()); err != nil {
		s.mu.Unlock()
		return errors.WrapWithCode(err, errors.CodeInternal, "scene.add", "registering element with binding")
	}
	s.insertOrdered(own)
	s.byID[own.ID] = own
	if s.aligner != nil {
		s.aligner.UpsertSibling(boxOf(own))
	}
	snapshot := own.Clone()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAdded, ID: snapshot.ID, Element: snapshot})
	s.repaint.request()
	return nil
}

// Update patches an element in place. The mutation runs on a working clone;
// id and zIndex are immutable here and an invalid result reverts the patch.
func (s *Scene) Update(id string, mutate func(*models.Element)) error {
	if mutate == nil {
		return errors.Validation("mutate func is required")
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return errDestroyed("scene.update")
	}
	el, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return errors.NotFound("element", id)
	}

	work := el.Clone()
	mutate(work)
	work.ID = el.ID
	work.ZIndex = el.ZIndex
	if err := work.Validate(); err != nil {
		s.mu.Unlock()
		return errors.WrapWithCode(err, errors.CodeValidation, "scene.update", "patch produced an invalid element")
	}
	*el = *work
	if err := s.binding.UpdatePrimitive(el.Clone()); err != nil {
		s.mu.Unlock()
		return errors.WrapWithCode(err, errors.CodeInternal, "scene.update", "updating element in binding")
	}
	if s.aligner != nil {
		s.aligner.UpsertSibling(boxOf(el))
	}
	snapshot := el.Clone()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdated, ID: id, Element: snapshot})
	s.repaint.request()
	return nil
}

// Remove deletes an element. Any in-flight image load for it is cancelled
// and its result discarded.
func (s *Scene) Remove(id string) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return errDestroyed("scene.remove")
	}
	el, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return errors.NotFound("element", id)
	}
	if err := s.binding.RemovePrimitive(id); err != nil {
		s.mu.Unlock()
		return errors.WrapWithCode(err, errors.CodeInternal, "scene.remove", "removing element from binding")
	}
	delete(s.byID, id)
	for i, e := range s.elements {
		if e == el {
			s.elements = append(s.elements[:i], s.elements[i+1:]...)
			break
		}
	}
	if load, ok := s.loads[id]; ok {
		if load.cancel != nil {
			load.cancel()
		}
		delete(s.loads, id)
	}
	if s.aligner != nil {
		s.aligner.RemoveSibling(id)
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRemoved, ID: id})
	s.repaint.request()
	return nil
}

// Reorder replaces the stacking order with the given bottom-to-top id list,
// which must be a permutation of the current elements. zIndexes are
// renumbered 1..n.
func (s *Scene) Reorder(ids []string) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return errDestroyed("scene.reorder")
	}
	if len(ids) != len(s.elements) {
		s.mu.Unlock()
		return errors.Validationf("reorder wants %d ids, got %d", len(s.elements), len(ids))
	}
	next := make([]*models.Element, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			s.mu.Unlock()
			return errors.Validationf("duplicate id %q in reorder", id)
		}
		seen[id] = struct{}{}
		el, ok := s.byID[id]
		if !ok {
			s.mu.Unlock()
			return errors.NotFound("element", id)
		}
		next = append(next, el)
	}
	if err := s.binding.ReorderPrimitives(append([]string(nil), ids...)); err != nil {
		s.mu.Unlock()
		return errors.WrapWithCode(err, errors.CodeInternal, "scene.reorder", "reordering binding primitives")
	}
	s.elements = next
	s.renumber()
	order := append([]string(nil), ids...)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeReordered, Order: order})
	s.repaint.request()
	return nil
}

// BringToFront moves an element to the top of the stack.
func (s *Scene) BringToFront(id string) error {
	return s.moveInStack(id, func(rest []string) []string { return append(rest, id) })
}

// SendToBack moves an element under everything else.
func (s *Scene) SendToBack(id string) error {
	return s.moveInStack(id, func(rest []string) []string {
		return append([]string{id}, rest...)
	})
}

func (s *Scene) moveInStack(id string, place func(rest []string) []string) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return errDestroyed("scene.reorder")
	}
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return errors.NotFound("element", id)
	}
	rest := make([]string, 0, len(s.elements)-1)
	for _, el := range s.elements {
		if el.ID != id {
			rest = append(rest, el.ID)
		}
	}
	order := place(rest)
	s.mu.Unlock()
	return s.Reorder(order)
}

// Element returns a snapshot clone of one element.
func (s *Scene) Element(id string) (*models.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return el.Clone(), true
}

// Elements returns snapshot clones in stacking order, bottom to top.
func (s *Scene) Elements() []*models.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Element, len(s.elements))
	for i, el := range s.elements {
		out[i] = el.Clone()
	}
	return out
}

// RequestRepaint schedules a coalesced repaint.
func (s *Scene) RequestRepaint() {
	s.repaint.request()
}

// Destroy tears the scene down: the pending repaint is cancelled, in-flight
// image loads are cancelled and every later mutation fails. Idempotent.
func (s *Scene) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	for _, load := range s.loads {
		if load.cancel != nil {
			load.cancel()
		}
	}
	s.loads = make(map[string]*imageLoad)
	s.mu.Unlock()
	s.repaint.stop()
	s.log.Debug("scene destroyed")
}

func (s *Scene) topZ() int {
	top := 0
	for _, el := range s.elements {
		if el.ZIndex > top {
			top = el.ZIndex
		}
	}
	return top
}

// insertOrdered keeps s.elements ascending by zIndex, new element after
// equal indexes so later additions stack on top.
func (s *Scene) insertOrdered(el *models.Element) {
	at := sort.Search(len(s.elements), func(i int) bool {
		return s.elements[i].ZIndex > el.ZIndex
	})
	s.elements = append(s.elements, nil)
	copy(s.elements[at+1:], s.elements[at:])
	s.elements[at] = el
}

func (s *Scene) renumber() {
	for i, el := range s.elements {
		el.ZIndex = i + 1
	}
}

func (s *Scene) syncAligner() {
	if s.aligner == nil {
		return
	}
	boxes := make([]align.Box, 0, len(s.elements))
	for _, el := range s.elements {
		boxes = append(boxes, boxOf(el))
	}
	s.aligner.SetSiblings(boxes)
}

func (s *Scene) notify(c Change) {
	s.mu.Lock()
	handlers := append([]ChangeHandler(nil), s.handlers...)
	s.mu.Unlock()
	for _, h := range handlers {
		h(c)
	}
}

func boxOf(el *models.Element) align.Box {
	return align.Box{ID: el.ID, X: el.X, Y: el.Y, W: el.Width, H: el.Height}
}

func errDestroyed(op string) error {
	return errors.New(errors.CodeConflict, "scene is destroyed").WithField("op", op)
}
