// Package render is the headless renderer: it turns one template plus one
// data row into a PNG. It never mutates the template, and a broken element
// degrades to a visible placeholder instead of failing the row.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/png"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"pinforge/internal/fields"
	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"
	"pinforge/internal/pkg/logger"
	"pinforge/internal/render/fontpack"
)

// Placeholder palette. Image placeholders are neutral, element failures red,
// so a miss in batch output is tellable from a crash at a glance.
var (
	placeholderFill   = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
	placeholderBorder = color.RGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
	failureFill       = color.RGBA{R: 0xfe, G: 0xe2, B: 0xe2, A: 0xff}
	failureBorder     = color.RGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff}
)

// Renderer paints template+row pairs. Safe for concurrent use; each call
// works on its own canvas and the font registry serializes itself.
type Renderer struct {
	fonts  *fontpack.Registry
	loader ImageLoader
	log    *logger.Logger
}

// Options configures a Renderer. Zero values get working defaults.
type Options struct {
	Fonts  *fontpack.Registry
	Loader ImageLoader
	Log    *logger.Logger
}

func New(opts Options) *Renderer {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault()
	}
	fonts := opts.Fonts
	if fonts == nil {
		fonts = fontpack.NewRegistry("", log)
	}
	loader := opts.Loader
	if loader == nil {
		loader = NewHTTPLoader(0)
	}
	return &Renderer{
		fonts:  fonts,
		loader: loader,
		log:    log.WithComponent("render"),
	}
}

// RenderRow paints one row of a campaign onto the template and returns the
// encoded PNG. Element failures are absorbed as placeholders; only a broken
// template or an encoding failure fails the row.
func (r *Renderer) RenderRow(ctx context.Context, tpl *models.Template, row models.Row, mapping map[string]string) ([]byte, error) {
	if tpl == nil {
		return nil, errors.Validation("template is required")
	}
	if err := tpl.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "render.row", "invalid template")
	}

	c := canvas.New(float64(tpl.Width), float64(tpl.Height))
	cc := canvas.NewContext(c)

	p := &painter{
		ctx:     cc,
		H:       float64(tpl.Height),
		fonts:   r.fonts,
		loader:  r.loader,
		log:     r.log,
		goCtx:   ctx,
		row:     row,
		mapping: mapping,
	}

	p.background(tpl)
	for _, el := range tpl.PaintList() {
		p.paintElement(el)
	}

	img := rasterizer.Draw(c, canvas.DPMM(1.0), canvas.DefaultColorSpace)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeRenderFailed, "render.row", "png encode")
	}
	return buf.Bytes(), nil
}

// painter carries per-row paint state. Template coordinates have their
// origin at the top left; the canvas has it at the bottom left, so the two
// flip helpers convert every y on the way in.
type painter struct {
	ctx     *canvas.Context
	H       float64
	fonts   *fontpack.Registry
	loader  ImageLoader
	log     *logger.Logger
	goCtx   context.Context
	row     models.Row
	mapping map[string]string
}

// flip converts a template y coordinate (a point) to canvas space.
func (p *painter) flip(y float64) float64 { return p.H - y }

// flipRect converts a template box top edge to the canvas anchor for a
// path or image of the given height.
func (p *painter) flipRect(top, height float64) float64 { return p.H - top - height }

func (p *painter) background(tpl *models.Template) {
	col, err := parseColor(tpl.Background)
	if err != nil {
		p.log.Warn("unparseable template background, leaving transparent", "color", tpl.Background)
		return
	}
	if isTransparent(col) {
		return
	}
	p.ctx.SetStrokeColor(canvas.Transparent)
	p.ctx.SetFillColor(col)
	p.ctx.DrawPath(0, 0, canvas.Rectangle(float64(tpl.Width), float64(tpl.Height)))
}

// paintElement dispatches on the element kind. A panic inside any variant is
// absorbed and replaced with the failure placeholder so the remaining
// elements and the row always survive.
func (p *painter) paintElement(el *models.Element) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Warn("element paint panicked",
				"element_id", el.ID,
				"kind", string(el.Kind),
				"panic", fmt.Sprint(rec),
			)
			p.paintBox(el.X, el.Y, el.Width, el.Height, 0, failureFill, failureBorder, 2)
		}
	}()

	restore := p.pushRotation(el)
	defer restore()

	switch el.Kind {
	case models.KindText:
		p.paintTextEl(el)
	case models.KindImage:
		p.paintImageEl(el)
	case models.KindShape:
		p.paintShapeEl(el)
	case models.KindFrame:
		p.paintFrameEl(el)
	default:
		p.paintBox(el.X, el.Y, el.Width, el.Height, 0, failureFill, failureBorder, 2)
	}
}

// pushRotation applies the element's rotation about its own center and
// returns the restore func. Template rotation is clockwise degrees.
func (p *painter) pushRotation(el *models.Element) func() {
	if el.Rotation == 0 {
		return func() {}
	}
	cx, cy := el.Center()
	p.ctx.SetView(canvas.Identity.RotateAbout(-el.Rotation, cx, p.flip(cy)))
	return func() { p.ctx.SetView(canvas.Identity) }
}

func (p *painter) paintImageEl(el *models.Element) {
	ie := el.Image
	url := fields.ImageURL(el, p.row, p.mapping)

	boxW, boxH := int(el.Width+0.5), int(el.Height+0.5)
	if boxW <= 0 || boxH <= 0 {
		return
	}

	src, err := p.loader.Load(p.goCtx, url)
	if err != nil {
		// A missing image is content the row can live without; the box
		// gets the neutral placeholder and the row still succeeds.
		p.log.Info("image load failed, painting placeholder",
			"element_id", el.ID,
			"url", url,
			"error", err.Error(),
		)
		p.paintBox(el.X, el.Y, el.Width, el.Height, ie.CornerRadius,
			withOpacity(placeholderFill, el.Opacity), withOpacity(placeholderBorder, el.Opacity), 2)
		p.paintCross(el, withOpacity(placeholderBorder, el.Opacity))
		return
	}

	fit := ie.Fit
	if fit == "" {
		fit = models.FitFill
	}
	out := fitImage(src, boxW, boxH, fit)
	if ie.CornerRadius > 0 {
		applyCornerRadius(out, ie.CornerRadius)
	}
	if el.Opacity < 1 {
		applyOpacity(out, el.Opacity)
	}

	// DPMM(1) maps one image pixel to one canvas unit.
	p.ctx.DrawImage(el.X, p.flipRect(el.Y, float64(boxH)), out, canvas.DPMM(1.0))
}

func (p *painter) paintShapeEl(el *models.Element) {
	se := el.Shape
	fill := withOpacity(colorOr(se.Fill, color.RGBA{}), el.Opacity)
	stroke := withOpacity(colorOr(se.Stroke, color.RGBA{}), el.Opacity)

	var path *canvas.Path
	var anchorX, anchorY float64

	switch se.Shape {
	case models.ShapeRect:
		if se.CornerRadius > 0 {
			r := se.CornerRadius
			if max := minf(el.Width, el.Height) / 2; r > max {
				r = max
			}
			path = canvas.RoundedRectangle(el.Width, el.Height, r)
		} else {
			path = canvas.Rectangle(el.Width, el.Height)
		}
		anchorX, anchorY = el.X, p.flipRect(el.Y, el.Height)

	case models.ShapeCircle:
		path = canvas.Ellipse(el.Width/2, el.Height/2)
		cx, cy := el.Center()
		anchorX, anchorY = cx, p.flip(cy)

	case models.ShapePath:
		parsed, err := canvas.ParseSVGPath(se.Path)
		if err != nil {
			p.log.Warn("bad path data", "element_id", el.ID, "error", err.Error())
			p.paintBox(el.X, el.Y, el.Width, el.Height, 0, failureFill, failureBorder, 2)
			return
		}
		// Path data is authored in the element's local space with y
		// growing downward, like SVG.
		path = parsed.Transform(canvas.Identity.Translate(el.X, p.flip(el.Y)).Scale(1, -1))
		anchorX, anchorY = 0, 0

	default:
		p.paintBox(el.X, el.Y, el.Width, el.Height, 0, failureFill, failureBorder, 2)
		return
	}

	p.ctx.SetFillColor(fill)
	if !isTransparent(stroke) && se.StrokeWidth > 0 {
		p.ctx.SetStrokeColor(stroke)
		p.ctx.SetStrokeWidth(se.StrokeWidth)
	} else {
		p.ctx.SetStrokeColor(canvas.Transparent)
	}
	p.ctx.DrawPath(anchorX, anchorY, path)
	p.ctx.SetStrokeColor(canvas.Transparent)
}

// paintFrameEl draws a frame guide: a dashed outline with an optional
// translucent fill. Frames never bind data.
func (p *painter) paintFrameEl(el *models.Element) {
	fe := el.Frame
	strokeSpec := fe.Stroke
	if strokeSpec == "" {
		strokeSpec = "#9ca3af"
	}
	stroke := withOpacity(colorOr(strokeSpec, placeholderBorder), el.Opacity)
	width := fe.StrokeWidth
	if width <= 0 {
		width = 1
	}

	if fill, err := parseColor(fe.Fill); err == nil && !isTransparent(fill) {
		p.ctx.SetStrokeColor(canvas.Transparent)
		p.ctx.SetFillColor(withOpacity(fill, el.Opacity))
		p.ctx.DrawPath(el.X, p.flipRect(el.Y, el.Height), canvas.Rectangle(el.Width, el.Height))
	}

	p.ctx.SetFillColor(canvas.Transparent)
	p.ctx.SetStrokeColor(stroke)
	p.ctx.SetStrokeWidth(width)
	p.ctx.SetDashes(0, 4, 3)
	p.ctx.DrawPath(el.X, p.flipRect(el.Y, el.Height), canvas.Rectangle(el.Width, el.Height))
	p.ctx.SetDashes(0)
	p.ctx.SetStrokeColor(canvas.Transparent)
}

// paintBox fills and outlines a box; shared by the placeholder variants.
func (p *painter) paintBox(x, y, w, h, radius float64, fill, border color.RGBA, borderWidth float64) {
	if w <= 0 || h <= 0 {
		return
	}
	var path *canvas.Path
	if radius > 0 {
		if max := minf(w, h) / 2; radius > max {
			radius = max
		}
		path = canvas.RoundedRectangle(w, h, radius)
	} else {
		path = canvas.Rectangle(w, h)
	}
	p.ctx.SetFillColor(fill)
	if isTransparent(border) || borderWidth <= 0 {
		p.ctx.SetStrokeColor(canvas.Transparent)
	} else {
		p.ctx.SetStrokeColor(border)
		p.ctx.SetStrokeWidth(borderWidth)
	}
	p.ctx.DrawPath(x, p.flipRect(y, h), path)
	p.ctx.SetStrokeColor(canvas.Transparent)
}

// paintCross marks a placeholder box with its diagonals.
func (p *painter) paintCross(el *models.Element, col color.RGBA) {
	if el.Width <= 0 || el.Height <= 0 {
		return
	}
	p.ctx.SetFillColor(canvas.Transparent)
	p.ctx.SetStrokeColor(col)
	p.ctx.SetStrokeWidth(1)

	d1 := &canvas.Path{}
	d1.MoveTo(0, 0)
	d1.LineTo(el.Width, el.Height)
	d2 := &canvas.Path{}
	d2.MoveTo(0, el.Height)
	d2.LineTo(el.Width, 0)

	y := p.flipRect(el.Y, el.Height)
	p.ctx.DrawPath(el.X, y, d1)
	p.ctx.DrawPath(el.X, y, d2)
	p.ctx.SetStrokeColor(canvas.Transparent)
}
