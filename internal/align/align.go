// Package align computes snapping, alignment guides, distance badges and
// equal-spacing hints while a user drags elements on the canvas. It is pure
// geometry: the scene adapter feeds it boxes and applies whatever positions
// it returns. Nothing here touches the scene graph itself.
//
// A drag gesture walks idle → active → released: Begin marks the gesture
// active, Move classifies every candidate into a magnetic zone on each
// pointer step, Release ends the gesture. Only lock-zone matches move the
// element; near and far matches surface as guides so weak attraction can
// never jitter the geometry.
package align

import (
	"math"
	"sort"

	"pinforge/internal/pkg/logger"
)

const (
	defaultThreshold = 5.0
	defaultGridSize  = 10.0
	defaultCellSize  = 100.0

	// Canvas boundaries pull slightly harder than everything else.
	boundaryLockScale = 1.2
)

// Axis selects the direction a guide constrains: AxisX is a vertical line
// at a fixed x, AxisY a horizontal line at a fixed y.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "y"
}

// Zone classifies how close an element point is to a snap candidate.
type Zone int

const (
	ZoneNone Zone = iota
	ZoneFar
	ZoneNear
	ZoneLock
)

func (z Zone) String() string {
	switch z {
	case ZoneLock:
		return "lock"
	case ZoneNear:
		return "near"
	case ZoneFar:
		return "far"
	default:
		return "none"
	}
}

// GuideKind names the candidate source a guide came from.
type GuideKind int

const (
	GuideBoundary GuideKind = iota
	GuideCenterLine
	GuideSiblingEdge
	GuideSiblingCenter
	GuideGrid
	GuideSpacing
)

func (k GuideKind) String() string {
	switch k {
	case GuideBoundary:
		return "boundary"
	case GuideCenterLine:
		return "center"
	case GuideSiblingEdge:
		return "edge"
	case GuideSiblingCenter:
		return "sibling-center"
	case GuideGrid:
		return "grid"
	case GuideSpacing:
		return "spacing"
	default:
		return "unknown"
	}
}

// Box is an axis-aligned element bounds in canvas coordinates.
type Box struct {
	ID string
	X  float64
	Y  float64
	W  float64
	H  float64
}

func (b Box) right() float64   { return b.X + b.W }
func (b Box) bottom() float64  { return b.Y + b.H }
func (b Box) centerX() float64 { return b.X + b.W/2 }
func (b Box) centerY() float64 { return b.Y + b.H/2 }

func (b Box) overlapsV(o Box) bool { return b.Y < o.bottom() && o.Y < b.bottom() }
func (b Box) overlapsH(o Box) bool { return b.X < o.right() && o.X < b.right() }

// Guide is one visual alignment hint. For GuideSpacing, Gap carries the
// spacing being reproduced.
type Guide struct {
	Axis Axis
	Pos  float64
	Kind GuideKind
	Zone Zone
	Gap  float64
}

// Badge is a measured distance between the active element and its nearest
// neighbor on one side, anchored at the midpoint of the gap.
type Badge struct {
	Axis  Axis
	Value float64
	X     float64
	Y     float64
}

// Adjustment is the outcome of one pointer step: the possibly-snapped box
// and the guides to display for this frame.
type Adjustment struct {
	Box      Box
	SnappedX bool
	SnappedY bool
	Guides   []Guide
}

// Config tunes the engine. Each candidate source toggles independently.
type Config struct {
	CanvasWidth  float64
	CanvasHeight float64

	Threshold float64 // lock distance; near = 2x, far = 3x
	GridSize  float64
	CellSize  float64 // spatial hash cell edge

	Boundaries     bool
	CenterLines    bool
	SiblingEdges   bool
	SiblingCenters bool
	Grid           bool
	EqualSpacing   bool
	ClampToCanvas  bool
}

// Engine runs the gesture state machine over one canvas. It is not safe for
// concurrent use; the interactive adapter serializes all access.
type Engine struct {
	cfg      Config
	log      *logger.Logger
	index    *spatialIndex
	active   bool
	activeID string
}

func NewEngine(cfg Config, log *logger.Logger) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.GridSize <= 0 {
		cfg.GridSize = defaultGridSize
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = defaultCellSize
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Engine{
		cfg:   cfg,
		log:   log.WithComponent("align"),
		index: newSpatialIndex(cfg.CellSize),
	}
}

// SetSiblings replaces the whole neighbor set, typically on template load.
func (e *Engine) SetSiblings(boxes []Box) {
	e.index = newSpatialIndex(e.cfg.CellSize)
	for _, b := range boxes {
		e.index.upsert(b)
	}
}

// UpsertSibling keeps the index current as one element moves or appears.
func (e *Engine) UpsertSibling(b Box) { e.index.upsert(b) }

// RemoveSibling drops an element from the index.
func (e *Engine) RemoveSibling(id string) { e.index.remove(id) }

// Begin starts a gesture for the given element id. The element itself never
// snaps against its own box.
func (e *Engine) Begin(id string) {
	e.active = true
	e.activeID = id
	e.log.Debug("gesture started", "element_id", id)
}

// Active reports whether a gesture is in flight.
func (e *Engine) Active() bool { return e.active }

// Release ends the gesture; the caller drops any guides it was displaying.
func (e *Engine) Release() {
	if e.active {
		e.log.Debug("gesture released", "element_id", e.activeID)
	}
	e.active = false
	e.activeID = ""
}

// Move evaluates one pointer step. Outside a gesture it returns the box
// untouched with no guides.
func (e *Engine) Move(b Box) Adjustment {
	if !e.active {
		return Adjustment{Box: b}
	}

	reach := 3 * e.cfg.Threshold
	// Alignment lines extend across the whole canvas, so the candidate
	// query is a slab limited only on the snapping axis.
	sibX := e.slabX(b.X-reach, b.W+2*reach)
	sibY := e.slabY(b.Y-reach, b.H+2*reach)

	adj := Adjustment{Box: b}

	dx, lockedX, guidesX := e.snapAxis(AxisX, ownPointsX(b), e.candidates(AxisX, sibX))
	dy, lockedY, guidesY := e.snapAxis(AxisY, ownPointsY(b), e.candidates(AxisY, sibY))
	adj.Box.X += dx
	adj.Box.Y += dy
	adj.SnappedX = lockedX
	adj.SnappedY = lockedY
	adj.Guides = append(adj.Guides, guidesX...)
	adj.Guides = append(adj.Guides, guidesY...)

	if e.cfg.EqualSpacing {
		// Spacing pairs can sit anywhere in the element's lane.
		if !adj.SnappedX {
			lane := e.slabY(adj.Box.Y, adj.Box.H)
			if x, g, ok := e.equalSpacing(AxisX, adj.Box, lane); ok {
				adj.Box.X = x
				adj.SnappedX = true
				adj.Guides = append(adj.Guides, g)
			}
		}
		if !adj.SnappedY {
			lane := e.slabX(adj.Box.X, adj.Box.W)
			if y, g, ok := e.equalSpacing(AxisY, adj.Box, lane); ok {
				adj.Box.Y = y
				adj.SnappedY = true
				adj.Guides = append(adj.Guides, g)
			}
		}
	}

	if e.cfg.ClampToCanvas {
		adj.Box = e.clamp(adj.Box)
	}

	sort.Slice(adj.Guides, func(i, j int) bool {
		gi, gj := adj.Guides[i], adj.Guides[j]
		if gi.Axis != gj.Axis {
			return gi.Axis < gj.Axis
		}
		if gi.Kind != gj.Kind {
			return gi.Kind < gj.Kind
		}
		return gi.Pos < gj.Pos
	})
	return adj
}

// slabX queries a vertical slab spanning the canvas height, excluding the
// active element. slabY is its horizontal mirror.
func (e *Engine) slabX(x, w float64) []Box {
	return e.exclude(e.index.query(x, 0, w, e.cfg.CanvasHeight))
}

func (e *Engine) slabY(y, h float64) []Box {
	return e.exclude(e.index.query(0, y, e.cfg.CanvasWidth, h))
}

func (e *Engine) exclude(found []Box) []Box {
	out := found[:0]
	for _, s := range found {
		if s.ID == e.activeID {
			continue
		}
		out = append(out, s)
	}
	return out
}

type ownPoint struct {
	value float64
}

func ownPointsX(b Box) []ownPoint {
	return []ownPoint{{b.X}, {b.centerX()}, {b.right()}}
}

func ownPointsY(b Box) []ownPoint {
	return []ownPoint{{b.Y}, {b.centerY()}, {b.bottom()}}
}

type candidate struct {
	pos      float64
	kind     GuideKind
	boundary bool
	perPoint bool // grid candidates are recomputed per own point
}

func (e *Engine) candidates(axis Axis, siblings []Box) []candidate {
	var out []candidate
	size := e.cfg.CanvasWidth
	if axis == AxisY {
		size = e.cfg.CanvasHeight
	}

	if e.cfg.Boundaries {
		out = append(out,
			candidate{pos: 0, kind: GuideBoundary, boundary: true},
			candidate{pos: size, kind: GuideBoundary, boundary: true},
		)
	}
	if e.cfg.CenterLines {
		out = append(out, candidate{pos: size / 2, kind: GuideCenterLine})
	}
	for _, s := range siblings {
		if e.cfg.SiblingEdges {
			if axis == AxisX {
				out = append(out,
					candidate{pos: s.X, kind: GuideSiblingEdge},
					candidate{pos: s.right(), kind: GuideSiblingEdge},
				)
			} else {
				out = append(out,
					candidate{pos: s.Y, kind: GuideSiblingEdge},
					candidate{pos: s.bottom(), kind: GuideSiblingEdge},
				)
			}
		}
		if e.cfg.SiblingCenters {
			if axis == AxisX {
				out = append(out, candidate{pos: s.centerX(), kind: GuideSiblingCenter})
			} else {
				out = append(out, candidate{pos: s.centerY(), kind: GuideSiblingCenter})
			}
		}
	}
	if e.cfg.Grid {
		out = append(out, candidate{kind: GuideGrid, perPoint: true})
	}
	return out
}

// snapAxis classifies every own-point/candidate pairing into a zone. The
// lock match with the smallest distance moves the axis; near and far
// pairings become guides only.
func (e *Engine) snapAxis(axis Axis, points []ownPoint, cands []candidate) (delta float64, locked bool, guides []Guide) {
	t := e.cfg.Threshold
	bestDist := math.Inf(1)
	var bestDelta float64
	var bestGuide Guide

	emitted := make(map[Guide]struct{})
	emit := func(g Guide) {
		if _, dup := emitted[g]; dup {
			return
		}
		emitted[g] = struct{}{}
		guides = append(guides, g)
	}

	for _, p := range points {
		for _, c := range cands {
			pos := c.pos
			if c.perPoint {
				pos = math.Round(p.value/e.cfg.GridSize) * e.cfg.GridSize
			}
			d := pos - p.value
			zone := zoneFor(math.Abs(d), t, c.boundary)
			switch zone {
			case ZoneLock:
				if math.Abs(d) < bestDist {
					bestDist = math.Abs(d)
					bestDelta = d
					bestGuide = Guide{Axis: axis, Pos: pos, Kind: c.kind, Zone: ZoneLock}
					locked = true
				}
			case ZoneNear, ZoneFar:
				emit(Guide{Axis: axis, Pos: pos, Kind: c.kind, Zone: zone})
			}
		}
	}

	if locked {
		emit(bestGuide)
		return bestDelta, true, guides
	}
	return 0, false, guides
}

func zoneFor(dist, threshold float64, boundary bool) Zone {
	lock := threshold
	if boundary {
		lock *= boundaryLockScale
	}
	switch {
	case dist <= lock:
		return ZoneLock
	case dist <= 2*threshold:
		return ZoneNear
	case dist <= 3*threshold:
		return ZoneFar
	default:
		return ZoneNone
	}
}

// equalSpacing looks for an existing sibling gap matching the active
// element's prospective gap to its nearest neighbor and snaps to reproduce
// it exactly.
func (e *Engine) equalSpacing(axis Axis, b Box, siblings []Box) (pos float64, g Guide, ok bool) {
	t := e.cfg.Threshold

	lo := func(x Box) float64 {
		if axis == AxisX {
			return x.X
		}
		return x.Y
	}
	hi := func(x Box) float64 {
		if axis == AxisX {
			return x.right()
		}
		return x.bottom()
	}
	overlaps := func(a, c Box) bool {
		if axis == AxisX {
			return a.overlapsV(c)
		}
		return a.overlapsH(c)
	}
	length := b.W
	if axis == AxisY {
		length = b.H
	}

	var lane []Box
	for _, s := range siblings {
		if overlaps(b, s) {
			lane = append(lane, s)
		}
	}
	if len(lane) == 0 {
		return 0, Guide{}, false
	}

	// Gaps already present between sibling pairs in the same lane.
	var gaps []float64
	for i := 0; i < len(lane); i++ {
		for j := 0; j < len(lane); j++ {
			if i == j || !overlaps(lane[i], lane[j]) {
				continue
			}
			if gap := lo(lane[j]) - hi(lane[i]); gap > 0 {
				gaps = append(gaps, gap)
			}
		}
	}
	if len(gaps) == 0 {
		return 0, Guide{}, false
	}

	// Nearest neighbor on each side of the active element.
	var before, after *Box
	for i := range lane {
		s := lane[i]
		if hi(s) <= lo(b)+t && (before == nil || hi(s) > hi(*before)) {
			before = &lane[i]
		}
		if lo(s) >= hi(b)-t && (after == nil || lo(s) < lo(*after)) {
			after = &lane[i]
		}
	}

	type match struct {
		pos  float64
		gap  float64
		dist float64
	}
	best := match{dist: math.Inf(1)}
	consider := func(prospective, snapTo, gap float64) {
		d := math.Abs(prospective - gap)
		if d <= t && d < best.dist {
			best = match{pos: snapTo, gap: gap, dist: d}
		}
	}
	for _, gap := range gaps {
		if before != nil {
			consider(lo(b)-hi(*before), hi(*before)+gap, gap)
		}
		if after != nil {
			consider(lo(*after)-hi(b), lo(*after)-gap-length, gap)
		}
	}
	if math.IsInf(best.dist, 1) {
		return 0, Guide{}, false
	}
	return best.pos, Guide{Axis: axis, Pos: best.pos, Kind: GuideSpacing, Zone: ZoneLock, Gap: best.gap}, true
}

func (e *Engine) clamp(b Box) Box {
	maxX := e.cfg.CanvasWidth - b.W
	maxY := e.cfg.CanvasHeight - b.H
	if b.X < 0 {
		b.X = 0
	} else if maxX >= 0 && b.X > maxX {
		b.X = maxX
	}
	if b.Y < 0 {
		b.Y = 0
	} else if maxY >= 0 && b.Y > maxY {
		b.Y = maxY
	}
	return b
}

// Badges measures the gap between the box and its nearest neighbor on each
// side, anchored mid-gap for display.
func (e *Engine) Badges(b Box) []Badge {
	horiz := e.slabY(b.Y, b.H)
	vert := e.slabX(b.X, b.W)
	var out []Badge

	var left, right, top, bottom *Box
	for i := range horiz {
		s := horiz[i]
		if !b.overlapsV(s) {
			continue
		}
		if s.right() <= b.X && (left == nil || s.right() > left.right()) {
			left = &horiz[i]
		}
		if s.X >= b.right() && (right == nil || s.X < right.X) {
			right = &horiz[i]
		}
	}
	for i := range vert {
		s := vert[i]
		if !b.overlapsH(s) {
			continue
		}
		if s.bottom() <= b.Y && (top == nil || s.bottom() > top.bottom()) {
			top = &vert[i]
		}
		if s.Y >= b.bottom() && (bottom == nil || s.Y < bottom.Y) {
			bottom = &vert[i]
		}
	}

	if left != nil {
		gap := b.X - left.right()
		out = append(out, Badge{Axis: AxisX, Value: gap, X: left.right() + gap/2, Y: b.centerY()})
	}
	if right != nil {
		gap := right.X - b.right()
		out = append(out, Badge{Axis: AxisX, Value: gap, X: b.right() + gap/2, Y: b.centerY()})
	}
	if top != nil {
		gap := b.Y - top.bottom()
		out = append(out, Badge{Axis: AxisY, Value: gap, X: b.centerX(), Y: top.bottom() + gap/2})
	}
	if bottom != nil {
		gap := bottom.Y - b.bottom()
		out = append(out, Badge{Axis: AxisY, Value: gap, X: b.centerX(), Y: b.bottom() + gap/2})
	}
	return out
}
