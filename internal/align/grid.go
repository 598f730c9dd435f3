package align

import (
	"math"
	"sort"
)

// spatialIndex is a uniform hash grid over sibling boxes. It only narrows
// the candidate set for snapping; element geometry always comes from the
// boxes handed to the engine, never from the grid.
type spatialIndex struct {
	cell  float64
	boxes map[string]Box
	cells map[cellKey]map[string]struct{}
}

type cellKey struct {
	cx, cy int
}

func newSpatialIndex(cell float64) *spatialIndex {
	if cell <= 0 {
		cell = defaultCellSize
	}
	return &spatialIndex{
		cell:  cell,
		boxes: make(map[string]Box),
		cells: make(map[cellKey]map[string]struct{}),
	}
}

func (idx *spatialIndex) upsert(b Box) {
	if b.ID == "" {
		return
	}
	idx.remove(b.ID)
	idx.boxes[b.ID] = b
	idx.eachCell(b.X, b.Y, b.W, b.H, func(k cellKey) {
		set, ok := idx.cells[k]
		if !ok {
			set = make(map[string]struct{})
			idx.cells[k] = set
		}
		set[b.ID] = struct{}{}
	})
}

func (idx *spatialIndex) remove(id string) {
	b, ok := idx.boxes[id]
	if !ok {
		return
	}
	idx.eachCell(b.X, b.Y, b.W, b.H, func(k cellKey) {
		if set, ok := idx.cells[k]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(idx.cells, k)
			}
		}
	})
	delete(idx.boxes, id)
}

// query returns the boxes whose cells intersect the given rect, sorted by id
// so callers iterate deterministically.
func (idx *spatialIndex) query(x, y, w, h float64) []Box {
	seen := make(map[string]struct{})
	idx.eachCell(x, y, w, h, func(k cellKey) {
		for id := range idx.cells[k] {
			seen[id] = struct{}{}
		}
	})
	out := make([]Box, 0, len(seen))
	for id := range seen {
		out = append(out, idx.boxes[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (idx *spatialIndex) len() int { return len(idx.boxes) }

func (idx *spatialIndex) eachCell(x, y, w, h float64, fn func(cellKey)) {
	minX := int(math.Floor(x / idx.cell))
	maxX := int(math.Floor((x + w) / idx.cell))
	minY := int(math.Floor(y / idx.cell))
	maxY := int(math.Floor((y + h) / idx.cell))
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			fn(cellKey{cx, cy})
		}
	}
}
