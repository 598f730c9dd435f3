package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"
)

func TestRowsPrefersInlineRows(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	camp := &models.Campaign{
		ID:          "camp-1",
		TemplateIDs: []string{"tpl-1"},
		Rows:        []models.Row{{"name": "inline"}},
		DataURL:     srv.URL,
	}
	rows, err := NewRowFetcher(nil).Rows(context.Background(), camp)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "inline" {
		t.Errorf("rows = %v, want the inline table", rows)
	}
	if hits.Load() != 0 {
		t.Error("inline rows still fetched the data url")
	}
}

func TestRowsFetchesDataURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"name":"Ada","price":19.90,"qty":3,"active":true,"note":null,"meta":{"a":1}},
			{"name":"Grace","price":7,"qty":12,"active":false,"note":"vip","meta":["x","y"]}
		]`))
	}))
	defer srv.Close()

	camp := &models.Campaign{ID: "camp-1", TemplateIDs: []string{"tpl-1"}, DataURL: srv.URL}
	rows, err := NewRowFetcher(nil).Rows(context.Background(), camp)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	want := models.Row{
		"name":   "Ada",
		"price":  "19.90",
		"qty":    "3",
		"active": "true",
		"note":   "",
		"meta":   `{"a":1}`,
	}
	for k, v := range want {
		if rows[0][k] != v {
			t.Errorf("row 0 %s = %q, want %q", k, rows[0][k], v)
		}
	}
	if rows[1]["price"] != "7" {
		t.Errorf("row 1 price = %q, want the untouched literal 7", rows[1]["price"])
	}
	if rows[1]["meta"] != `["x","y"]` {
		t.Errorf("row 1 meta = %q, want its JSON text", rows[1]["meta"])
	}
}

func TestRowsRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	camp := &models.Campaign{ID: "camp-1", TemplateIDs: []string{"tpl-1"}, DataURL: srv.URL}
	_, err := NewRowFetcher(nil).Rows(context.Background(), camp)
	if err == nil {
		t.Fatal("want an error for a non-200 data url")
	}
	if !errors.IsCode(err, errors.CodeConfiguration) {
		t.Errorf("got %v, want configuration code", err)
	}
}

func TestRowsRejectsInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	camp := &models.Campaign{ID: "camp-1", TemplateIDs: []string{"tpl-1"}, DataURL: srv.URL}
	if _, err := NewRowFetcher(nil).Rows(context.Background(), camp); err == nil {
		t.Fatal("want a decode error")
	}
}

func TestRowsRequiresSomeSource(t *testing.T) {
	camp := &models.Campaign{ID: "camp-1", TemplateIDs: []string{"tpl-1"}}
	_, err := NewRowFetcher(nil).Rows(context.Background(), camp)
	if err == nil {
		t.Fatal("want an error when the campaign has no table at all")
	}
	if !errors.IsCode(err, errors.CodeConfiguration) {
		t.Errorf("got %v, want configuration code", err)
	}
}

func TestStringValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "plain", "plain"},
		{"number keeps literal", json.Number("00.50"), "00.50"},
		{"integer", json.Number("42"), "42"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"array", []any{"a", json.Number("1")}, `["a",1]`},
		{"object", map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stringValue(tt.in); got != tt.want {
				t.Errorf("stringValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
