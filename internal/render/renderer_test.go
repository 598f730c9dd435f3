package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"testing"

	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"
	"pinforge/internal/pkg/logger"
	"pinforge/internal/render/fontpack"
)

type failingLoader struct{}

func (failingLoader) Load(ctx context.Context, url string) (image.Image, error) {
	return nil, fmt.Errorf("loader down")
}

func newTestRenderer(t *testing.T, loader ImageLoader) *Renderer {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	return New(Options{
		Fonts:  fontpack.NewRegistry(t.TempDir(), log),
		Loader: loader,
		Log:    log,
	})
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a decodable PNG: %v", err)
	}
	return img
}

func TestRenderRowProducesCanvasSizedPNG(t *testing.T) {
	tpl := &models.Template{
		ID: "tpl_1", Width: 40, Height: 30, Background: "#ff0000",
		Elements: []models.Element{{
			ID: "el_1", Kind: models.KindShape,
			X: 5, Y: 5, Width: 10, Height: 10, Opacity: 1, Visible: true,
			Shape: &models.ShapeElement{Shape: models.ShapeRect, Fill: "#0000ff"},
		}},
	}

	r := newTestRenderer(t, failingLoader{})
	data, err := r.RenderRow(context.Background(), tpl, nil, nil)
	if err != nil {
		t.Fatalf("RenderRow: %v", err)
	}

	img := decodePNG(t, data)
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("output bounds = %v, want 40x30", b)
	}

	// Away from any element the background fill shows through.
	r8, g8, b8, a8 := img.At(35, 25).RGBA()
	if a8>>8 != 0xff || r8>>8 < 0xc0 || g8>>8 > 0x40 || b8>>8 > 0x40 {
		t.Errorf("background pixel = (%d,%d,%d,%d), want solid red",
			r8>>8, g8>>8, b8>>8, a8>>8)
	}
}

func TestRenderRowValidatesTemplate(t *testing.T) {
	r := newTestRenderer(t, failingLoader{})
	ctx := context.Background()

	if _, err := r.RenderRow(ctx, nil, nil, nil); err == nil {
		t.Error("expected error for nil template")
	} else if errors.GetCode(err) != errors.CodeValidation {
		t.Errorf("nil template code = %s, want %s", errors.GetCode(err), errors.CodeValidation)
	}

	bad := &models.Template{ID: "tpl_bad", Width: 0, Height: 100}
	if _, err := r.RenderRow(ctx, bad, nil, nil); err == nil {
		t.Error("expected error for zero-width canvas")
	} else if errors.GetCode(err) != errors.CodeValidation {
		t.Errorf("bad canvas code = %s, want %s", errors.GetCode(err), errors.CodeValidation)
	}

	twoPayloads := &models.Template{
		ID: "tpl_two", Width: 10, Height: 10,
		Elements: []models.Element{{
			ID: "el_1", Kind: models.KindShape,
			Width: 5, Height: 5, Opacity: 1, Visible: true,
			Shape: &models.ShapeElement{Shape: models.ShapeRect},
			Frame: &models.FrameElement{},
		}},
	}
	if _, err := r.RenderRow(ctx, twoPayloads, nil, nil); err == nil {
		t.Error("expected error for element with two payloads")
	}
}

func TestRenderRowImageFailureYieldsPlaceholderNotError(t *testing.T) {
	tpl := &models.Template{
		ID: "tpl_img", Width: 60, Height: 60,
		Elements: []models.Element{{
			ID: "el_img", Kind: models.KindImage,
			X: 10, Y: 10, Width: 40, Height: 40, Opacity: 1, Visible: true,
			Image: &models.ImageElement{URL: "https://example.com/missing.png"},
		}},
	}

	r := newTestRenderer(t, failingLoader{})
	data, err := r.RenderRow(context.Background(), tpl, nil, nil)
	if err != nil {
		t.Fatalf("image failure must not fail the row: %v", err)
	}

	// The placeholder box is painted where the image would have been.
	img := decodePNG(t, data)
	if _, _, _, a := img.At(30, 30).RGBA(); a == 0 {
		t.Error("placeholder region is fully transparent, expected painted box")
	}
}

func TestRenderRowInvisibleElementsLeaveNoPixels(t *testing.T) {
	tpl := &models.Template{
		ID: "tpl_hidden", Width: 20, Height: 20,
		Elements: []models.Element{{
			ID: "el_hidden", Kind: models.KindShape,
			Width: 20, Height: 20, Opacity: 1, Visible: false,
			Shape: &models.ShapeElement{Shape: models.ShapeRect, Fill: "#ff0000"},
		}},
	}

	r := newTestRenderer(t, failingLoader{})
	data, err := r.RenderRow(context.Background(), tpl, nil, nil)
	if err != nil {
		t.Fatalf("RenderRow: %v", err)
	}

	img := decodePNG(t, data)
	if _, _, _, a := img.At(10, 10).RGBA(); a != 0 {
		t.Errorf("invisible element painted pixels, alpha = %d", a>>8)
	}
}

func TestRenderRowTextElementWithFallbackFont(t *testing.T) {
	tpl := &models.Template{
		ID: "tpl_text", Width: 200, Height: 80,
		Elements: []models.Element{{
			ID: "el_text", Kind: models.KindText,
			X: 10, Y: 10, Width: 180, Height: 60, Opacity: 1, Visible: true,
			Text: &models.TextElement{
				Text: "Hello {{name}}", Dynamic: true, Field: "name",
				FontFamily: "No Such Family", FontSize: 24, Fill: "#111111",
			},
		}},
	}

	r := newTestRenderer(t, failingLoader{})
	row := models.Row{"name": "World"}
	data, err := r.RenderRow(context.Background(), tpl, row, nil)
	if err != nil {
		t.Fatalf("text render with unknown family must fall back, got: %v", err)
	}

	// Some text pixels must land inside the element box.
	img := decodePNG(t, data)
	painted := false
	for y := 10; y < 70 && !painted; y++ {
		for x := 10; x < 190; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				painted = true
				break
			}
		}
	}
	if !painted {
		t.Error("no pixels painted in the text box")
	}
}

func TestRenderRowIsDeterministic(t *testing.T) {
	tpl := &models.Template{
		ID: "tpl_det", Width: 30, Height: 30, Background: "#ffffff",
		Elements: []models.Element{{
			ID: "el_c", Kind: models.KindShape,
			X: 5, Y: 5, Width: 20, Height: 20, Opacity: 0.5, Visible: true, Rotation: 30,
			Shape: &models.ShapeElement{Shape: models.ShapeCircle, Fill: "#00ff00"},
		}},
	}

	r := newTestRenderer(t, failingLoader{})
	first, err := r.RenderRow(context.Background(), tpl, nil, nil)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := r.RenderRow(context.Background(), tpl, nil, nil)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("same template+row must produce identical bytes")
	}
}
