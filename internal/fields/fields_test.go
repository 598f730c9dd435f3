package fields

import (
	"testing"

	"pinforge/internal/models"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		row     models.Row
		mapping map[string]string
		want    string
	}{
		{
			name:    "mapped field",
			raw:     "Hello {{name}}!",
			row:     models.Row{"col": "World"},
			mapping: map[string]string{"name": "col"},
			want:    "Hello World!",
		},
		{
			name: "direct column fallback",
			raw:  "Hello {{name}}!",
			row:  models.Row{"name": "Direct"},
			want: "Hello Direct!",
		},
		{
			name: "missing resolves to empty",
			raw:  "{{missing}}",
			row:  models.Row{},
			want: "",
		},
		{
			name:    "multiple tokens left to right",
			raw:     "{{a}}-{{b}}-{{a}}",
			row:     models.Row{"a": "1", "b": "2"},
			mapping: map[string]string{},
			want:    "1-2-1",
		},
		{
			name: "whitespace inside token",
			raw:  "{{ name }}",
			row:  models.Row{"name": "x"},
			want: "x",
		},
		{
			name: "numeric value stays plain text",
			raw:  "№{{num}}",
			row:  models.Row{"num": "007"},
			want: "№007",
		},
		{
			name: "no tokens untouched",
			raw:  "static text",
			row:  models.Row{"static": "nope"},
			want: "static text",
		},
		{
			name:    "mapping points to absent column, direct fallback",
			raw:     "{{name}}",
			row:     models.Row{"name": "raw"},
			mapping: map[string]string{"name": "gone"},
			want:    "raw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.raw, tt.row, tt.mapping)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTransform(t *testing.T) {
	tests := []struct {
		tr   models.TextTransform
		in   string
		want string
	}{
		{models.TransformUppercase, "Hello World!", "HELLO WORLD!"},
		{models.TransformLowercase, "Hello World!", "hello world!"},
		{models.TransformCapitalize, "hello big world", "Hello Big World"},
		{models.TransformNone, "mIxEd", "mIxEd"},
		{"", "mIxEd", "mIxEd"},
	}

	for _, tt := range tests {
		t.Run(string(tt.tr)+"/"+tt.in, func(t *testing.T) {
			if got := Transform(tt.in, tt.tr); got != tt.want {
				t.Errorf("Transform(%q, %s) = %q, want %q", tt.in, tt.tr, got, tt.want)
			}
		})
	}
}

func TestTextTransformAfterSubstitution(t *testing.T) {
	got := Text("Hello {{name}}!", models.Row{"col": "World"}, map[string]string{"name": "col"}, models.TransformUppercase)
	if got != "HELLO WORLD!" {
		t.Errorf("Text() = %q, want %q", got, "HELLO WORLD!")
	}
}

func TestImageURL(t *testing.T) {
	row := models.Row{"photo": "https://cdn.example.com/p.jpg", "slug": "abc", "notaurl": "plain value"}
	mapping := map[string]string{"picture": "photo"}

	tests := []struct {
		name string
		el   models.Element
		want string
	}{
		{
			name: "dynamic mapped url wins",
			el: models.Element{ID: "i", Kind: models.KindImage, Image: &models.ImageElement{
				URL: "https://static/fallback.png", Dynamic: true, Field: "picture",
			}},
			want: "https://cdn.example.com/p.jpg",
		},
		{
			name: "dynamic non-url value falls through to static",
			el: models.Element{ID: "i", Kind: models.KindImage, Image: &models.ImageElement{
				URL: "https://static/fallback.png", Dynamic: true, Field: "notaurl",
			}},
			want: "https://static/fallback.png",
		},
		{
			name: "static url with tokens substituted",
			el: models.Element{ID: "i", Kind: models.KindImage, Image: &models.ImageElement{
				URL: "https://cdn.example.com/{{slug}}.png",
			}},
			want: "https://cdn.example.com/abc.png",
		},
		{
			name: "plain static url unchanged",
			el: models.Element{ID: "i", Kind: models.KindImage, Image: &models.ImageElement{
				URL: "https://static/original.png",
			}},
			want: "https://static/original.png",
		},
		{
			name: "data uri accepted from row",
			el: models.Element{ID: "i", Kind: models.KindImage, Image: &models.ImageElement{
				Dynamic: true, Field: "data",
			}},
			want: "data:image/png;base64,AAAA",
		},
	}

	row["data"] = "data:image/png;base64,AAAA"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImageURL(&tt.el, row, mapping); got != tt.want {
				t.Errorf("ImageURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
