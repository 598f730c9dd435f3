// Package fields resolves {{field}} tokens and text-case transforms against a
// campaign data row. Both the interactive adapter and the headless renderer
// go through this package, so substitution can never diverge between preview
// and batch output.
package fields

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pinforge/internal/models"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Resolve replaces every {{name}} token in raw, left to right. Each token is
// looked up through the field mapping first (mapping[name] names the data
// column), then directly as a column name. A token that resolves nowhere
// becomes the empty string; the literal token never survives.
func Resolve(raw string, row models.Row, mapping map[string]string) string {
	if !strings.Contains(raw, "{{") {
		return raw
	}
	return tokenPattern.ReplaceAllStringFunc(raw, func(match string) string {
		groups := tokenPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return ""
		}
		return lookup(strings.TrimSpace(groups[1]), row, mapping)
	})
}

func lookup(name string, row models.Row, mapping map[string]string) string {
	if name == "" {
		return ""
	}
	if col, ok := mapping[name]; ok {
		if v, ok := row[col]; ok {
			return v
		}
	}
	if v, ok := row[name]; ok {
		return v
	}
	return ""
}

// Transform applies the text-case transform to a fully resolved string.
// It runs after substitution, over the whole string, identically in both
// render targets.
func Transform(s string, tr models.TextTransform) string {
	switch tr {
	case models.TransformUppercase:
		return cases.Upper(language.Und).String(s)
	case models.TransformLowercase:
		return cases.Lower(language.Und).String(s)
	case models.TransformCapitalize:
		return cases.Title(language.Und, cases.NoLower).String(s)
	default:
		return s
	}
}

// Text is the full resolution path for a text element: substitute tokens,
// then apply the case transform to the resolved result.
func Text(raw string, row models.Row, mapping map[string]string, tr models.TextTransform) string {
	return Transform(Resolve(raw, row, mapping), tr)
}

// ImageURL resolves an image element's effective source. Priority order is a
// hard contract shared by both renderers:
//  1. a dynamic element with a source field uses the mapped/raw row value,
//     if that value looks like a URL or data URI;
//  2. otherwise a static URL containing {{...}} gets token substitution;
//  3. otherwise the static URL is returned unchanged.
func ImageURL(el *models.Element, row models.Row, mapping map[string]string) string {
	if el == nil || el.Image == nil {
		return ""
	}
	img := el.Image
	if img.Dynamic && img.Field != "" {
		if v := lookup(img.Field, row, mapping); LooksLikeURL(v) {
			return v
		}
	}
	if strings.Contains(img.URL, "{{") {
		return Resolve(img.URL, row, mapping)
	}
	return img.URL
}

// LooksLikeURL reports whether a row value can serve as an image source.
func LooksLikeURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "data:")
}
