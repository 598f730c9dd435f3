// Package fontpack resolves template font families to canvas font faces.
//
// Resolution order for a family name: in-memory cache, the bundled font
// directory, a remote URL when the name is one, then a generic class
// fallback built from the embedded Go fonts. Resolution never fails:
// a template that names a font nobody installed still renders, just not
// in that font.
package fontpack

import (
	"fmt"
	"image/color"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tdewolff/canvas"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"

	"pinforge/internal/pkg/logger"
)

// maxRemoteFontSize caps downloads of URL-referenced fonts.
const maxRemoteFontSize = 20 << 20

// Registry caches loaded font families. Safe for concurrent use.
type Registry struct {
	dir    string
	client *http.Client
	log    *logger.Logger

	mu       sync.Mutex
	families map[string]*canvas.FontFamily
}

// NewRegistry creates a registry rooted at dir (may be empty when no
// fonts are bundled).
func NewRegistry(dir string, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Registry{
		dir:      dir,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log.WithComponent("fontpack"),
		families: map[string]*canvas.FontFamily{},
	}
}

// Style maps a CSS-like numeric weight and italic flag onto a canvas style.
func Style(weight int, italic bool) canvas.FontStyle {
	var s canvas.FontStyle
	switch {
	case weight >= 900:
		s = canvas.FontBlack
	case weight >= 800:
		s = canvas.FontExtraBold
	case weight >= 700:
		s = canvas.FontBold
	case weight >= 600:
		s = canvas.FontSemiBold
	case weight >= 500:
		s = canvas.FontMedium
	case weight > 0 && weight <= 300:
		s = canvas.FontLight
	default:
		s = canvas.FontRegular
	}
	if italic {
		s |= canvas.FontItalic
	}
	return s
}

// ptPerUnit converts a size in canvas units to the points FontFamily.Face
// expects, so the face's metrics come back in canvas units again.
const ptPerUnit = 72.0 / 25.4

// Face returns a drawable face for the given family, size and color.
// size is in canvas units. The returned face is never nil.
func (r *Registry) Face(family string, size float64, col color.Color, weight int, italic bool) *canvas.FontFace {
	style := Style(weight, italic)
	fam := r.Family(family, style)
	return fam.Face(size*ptPerUnit, col, style, canvas.FontNormal)
}

// Family resolves a family name for a given style, loading and caching
// it on first use.
func (r *Registry) Family(name string, style canvas.FontStyle) *canvas.FontFamily {
	key := cacheKey(name, style)

	r.mu.Lock()
	defer r.mu.Unlock()

	if fam, ok := r.families[key]; ok {
		return fam
	}

	fam := r.load(name, style)
	r.families[key] = fam
	return fam
}

func (r *Registry) load(name string, style canvas.FontStyle) *canvas.FontFamily {
	if data, ok := r.loadBytes(name); ok {
		fam := canvas.NewFontFamily(name)
		if err := fam.LoadFont(data, 0, style); err == nil {
			return fam
		}
		r.log.Warn("font data unparseable, using fallback", "family", name)
	}
	return r.fallbackFamily(name, style)
}

// loadBytes tries the bundled directory first, then a remote fetch when
// the name is a URL.
func (r *Registry) loadBytes(name string) ([]byte, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, false
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return r.fetch(trimmed)
	}

	if r.dir == "" {
		return nil, false
	}
	for _, candidate := range fileCandidates(trimmed) {
		data, err := os.ReadFile(filepath.Join(r.dir, candidate))
		if err == nil && len(data) > 0 {
			return data, true
		}
	}
	return nil, false
}

func (r *Registry) fetch(url string) ([]byte, bool) {
	resp, err := r.client.Get(url)
	if err != nil {
		r.log.Warn("font fetch failed", "url", url, "error", err.Error())
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Warn("font fetch failed", "url", url, "status", resp.StatusCode)
		return nil, false
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteFontSize))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// fallbackFamily builds a family from the embedded Go fonts matching the
// generic class the name suggests. Loading embedded fonts does not fail.
func (r *Registry) fallbackFamily(name string, style canvas.FontStyle) *canvas.FontFamily {
	fam := canvas.NewFontFamily("fallback-" + classFor(name))
	data := fallbackBytes(classFor(name), style)
	if err := fam.LoadFont(data, 0, style); err != nil {
		// Unreachable with the embedded set, but keep the contract.
		fam = canvas.NewFontFamily("fallback-regular")
		_ = fam.LoadFont(goregular.TTF, 0, style)
	}
	return fam
}

const (
	classSans = "sans"
	classMono = "mono"
)

// classFor guesses a generic class from the family name.
func classFor(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "mono"),
		strings.Contains(n, "courier"),
		strings.Contains(n, "console"),
		strings.Contains(n, "code"):
		return classMono
	default:
		return classSans
	}
}

func fallbackBytes(class string, style canvas.FontStyle) []byte {
	bold := style&canvas.FontBold == canvas.FontBold ||
		style&canvas.FontExtraBold == canvas.FontExtraBold ||
		style&canvas.FontBlack == canvas.FontBlack
	italic := style&canvas.FontItalic == canvas.FontItalic

	if class == classMono {
		if bold {
			return gomonobold.TTF
		}
		return gomono.TTF
	}
	switch {
	case bold && italic:
		return gobolditalic.TTF
	case bold:
		return gobold.TTF
	case italic:
		return goitalic.TTF
	default:
		return goregular.TTF
	}
}

// fileCandidates lists filenames to try for a family inside the bundled
// directory, e.g. "Roboto Slab" -> Roboto Slab.ttf, RobotoSlab.ttf, ...
func fileCandidates(name string) []string {
	bases := []string{name}
	if compact := strings.ReplaceAll(name, " ", ""); compact != name {
		bases = append(bases, compact)
	}
	if lower := strings.ToLower(name); lower != name {
		bases = append(bases, lower)
		if compact := strings.ReplaceAll(lower, " ", ""); compact != lower {
			bases = append(bases, compact)
		}
	}

	out := make([]string, 0, len(bases)*2)
	for _, b := range bases {
		out = append(out, b+".ttf", b+".otf")
	}
	return out
}

func cacheKey(name string, style canvas.FontStyle) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(name)), style)
}
