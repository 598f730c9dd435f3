package align

import (
	"testing"
)

func TestSpatialIndexQuery(t *testing.T) {
	idx := newSpatialIndex(100)
	idx.upsert(Box{ID: "a", X: 10, Y: 10, W: 30, H: 30})
	idx.upsert(Box{ID: "b", X: 250, Y: 10, W: 30, H: 30})
	idx.upsert(Box{ID: "c", X: 90, Y: 90, W: 40, H: 40}) // spans four cells

	got := idx.query(0, 0, 120, 120)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("query near origin = %v, want a and c", ids(got))
	}

	got = idx.query(240, 0, 50, 50)
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("query far right = %v, want only b", ids(got))
	}
}

func TestSpatialIndexUpsertMoves(t *testing.T) {
	idx := newSpatialIndex(100)
	idx.upsert(Box{ID: "a", X: 10, Y: 10, W: 20, H: 20})
	idx.upsert(Box{ID: "a", X: 500, Y: 500, W: 20, H: 20})

	if got := idx.query(0, 0, 100, 100); len(got) != 0 {
		t.Errorf("old cells should be vacated, got %v", ids(got))
	}
	got := idx.query(490, 490, 50, 50)
	if len(got) != 1 || got[0].X != 500 {
		t.Errorf("moved box not found at new cells, got %v", got)
	}
	if idx.len() != 1 {
		t.Errorf("len = %d, want 1", idx.len())
	}
}

func TestSpatialIndexRemove(t *testing.T) {
	idx := newSpatialIndex(100)
	idx.upsert(Box{ID: "a", X: 10, Y: 10, W: 20, H: 20})
	idx.remove("a")
	idx.remove("missing") // no-op

	if got := idx.query(0, 0, 1000, 1000); len(got) != 0 {
		t.Errorf("removed box still queryable: %v", ids(got))
	}
	if idx.len() != 0 {
		t.Errorf("len = %d, want 0", idx.len())
	}
}

func TestSpatialIndexIgnoresEmptyID(t *testing.T) {
	idx := newSpatialIndex(100)
	idx.upsert(Box{X: 10, Y: 10, W: 20, H: 20})
	if idx.len() != 0 {
		t.Errorf("box without id should be ignored, len = %d", idx.len())
	}
}

func TestSpatialIndexNegativeCoordinates(t *testing.T) {
	idx := newSpatialIndex(100)
	idx.upsert(Box{ID: "a", X: -150, Y: -150, W: 40, H: 40})

	got := idx.query(-200, -200, 100, 100)
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("query in negative space = %v, want a", ids(got))
	}
}

func ids(boxes []Box) []string {
	out := make([]string, len(boxes))
	for i, b := range boxes {
		out[i] = b.ID
	}
	return out
}
