package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"

	"pinforge/internal/models"
)

// maxImageBytes caps a single downloaded source image.
const maxImageBytes = 32 << 20

// ImageLoader fetches and decodes a source image for an image element.
type ImageLoader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// HTTPLoader loads images over http(s) and from data URIs.
type HTTPLoader struct {
	client *http.Client
}

func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPLoader{client: &http.Client{Timeout: timeout}}
}

func (l *HTTPLoader) Load(ctx context.Context, url string) (image.Image, error) {
	switch {
	case strings.HasPrefix(url, "data:"):
		return decodeDataURI(url)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("image fetch: unexpected status %d", resp.StatusCode)
		}
		img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
		if err != nil {
			return nil, fmt.Errorf("image decode: %w", err)
		}
		return img, nil
	case url == "":
		return nil, fmt.Errorf("empty image url")
	default:
		return nil, fmt.Errorf("unsupported image url %q", url)
	}
}

func decodeDataURI(uri string) (image.Image, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data uri")
	}
	meta, payload := uri[len("data:"):comma], uri[comma+1:]

	var raw []byte
	if strings.HasSuffix(meta, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data uri base64: %w", err)
		}
		raw = decoded
	} else {
		raw = []byte(payload)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("data uri decode: %w", err)
	}
	return img, nil
}

// fitGeometry computes the destination and source rectangles realizing a fit
// mode for a srcW x srcH image inside a boxW x boxH box. The destination
// rectangle is relative to the box origin.
func fitGeometry(srcW, srcH, boxW, boxH int, mode models.FitMode) (dst, src image.Rectangle) {
	full := image.Rect(0, 0, srcW, srcH)
	box := image.Rect(0, 0, boxW, boxH)
	if srcW <= 0 || srcH <= 0 || boxW <= 0 || boxH <= 0 {
		return box, full
	}

	switch mode {
	case models.FitCover:
		// Uniform scale covering the whole box, overflow center-cropped
		// against the box itself.
		scale := float64(boxW) / float64(srcW)
		if s := float64(boxH) / float64(srcH); s > scale {
			scale = s
		}
		cropW := int(float64(boxW)/scale + 0.5)
		cropH := int(float64(boxH)/scale + 0.5)
		if cropW > srcW {
			cropW = srcW
		}
		if cropH > srcH {
			cropH = srcH
		}
		sx := (srcW - cropW) / 2
		sy := (srcH - cropH) / 2
		return box, image.Rect(sx, sy, sx+cropW, sy+cropH)

	case models.FitContain:
		// Uniform scale fitting inside the box, remainder centered.
		scale := float64(boxW) / float64(srcW)
		if s := float64(boxH) / float64(srcH); s < scale {
			scale = s
		}
		outW := int(float64(srcW)*scale + 0.5)
		outH := int(float64(srcH)*scale + 0.5)
		ox := (boxW - outW) / 2
		oy := (boxH - outH) / 2
		return image.Rect(ox, oy, ox+outW, oy+outH), full

	default: // fill
		return box, full
	}
}

// fitImage renders src into a fresh box-sized RGBA according to the fit mode.
func fitImage(src image.Image, boxW, boxH int, mode models.FitMode) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, boxW, boxH))
	b := src.Bounds()
	dr, sr := fitGeometry(b.Dx(), b.Dy(), boxW, boxH, mode)
	sr = sr.Add(b.Min)
	xdraw.CatmullRom.Scale(out, dr, src, sr, xdraw.Over, nil)
	return out
}

// applyCornerRadius clears pixels outside a rounded rectangle, with a soft
// one-pixel edge at the corner arcs.
func applyCornerRadius(img *image.RGBA, radius float64) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if radius <= 0 {
		return
	}
	if max := minf(w, h) / 2; radius > max {
		radius = max
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px, py := float64(x)+0.5, float64(y)+0.5

			// Nearest corner arc center; pixels outside all corner
			// squares keep full coverage.
			var cx, cy float64
			switch {
			case px < radius && py < radius:
				cx, cy = radius, radius
			case px > w-radius && py < radius:
				cx, cy = w-radius, radius
			case px < radius && py > h-radius:
				cx, cy = radius, h-radius
			case px > w-radius && py > h-radius:
				cx, cy = w-radius, h-radius
			default:
				continue
			}

			dx, dy := px-cx, py-cy
			dist := dx*dx + dy*dy
			cov := coverage(dist, radius)
			if cov >= 1 {
				continue
			}
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			if cov <= 0 {
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 0, 0
				continue
			}
			img.Pix[i] = uint8(float64(img.Pix[i])*cov + 0.5)
			img.Pix[i+1] = uint8(float64(img.Pix[i+1])*cov + 0.5)
			img.Pix[i+2] = uint8(float64(img.Pix[i+2])*cov + 0.5)
			img.Pix[i+3] = uint8(float64(img.Pix[i+3])*cov + 0.5)
		}
	}
}

// coverage maps squared distance from a corner center to [0,1] with a
// one-pixel antialiased edge at the arc.
func coverage(distSq, radius float64) float64 {
	if radius <= 0 {
		return 1
	}
	d := radius - math.Sqrt(distSq)
	switch {
	case d >= 0.5:
		return 1
	case d <= -0.5:
		return 0
	default:
		return d + 0.5
	}
}

// applyOpacity scales all channels; image.RGBA is alpha-premultiplied.
func applyOpacity(img *image.RGBA, op float64) {
	if op >= 1 {
		return
	}
	if op < 0 {
		op = 0
	}
	for i := range img.Pix {
		img.Pix[i] = uint8(float64(img.Pix[i])*op + 0.5)
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
