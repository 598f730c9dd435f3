package render

import (
	"image/color"

	"github.com/tdewolff/canvas"

	"pinforge/internal/autofit"
	"pinforge/internal/fields"
	"pinforge/internal/models"
)

const (
	defaultFontSize   = 16.0
	defaultLineHeight = 1.2
)

// textLayout is the resolved geometry for one text element.
type textLayout struct {
	fontSize float64
	lines    []string
	advance  float64 // baseline to baseline
	ascent   float64
	width    float64 // widest line
	height   float64 // whole block
}

func lineHeightMult(v float64) float64 {
	if v <= 0 {
		return defaultLineHeight
	}
	return v
}

// lineWidth measures a line the same way it is painted: whole-string when
// letter spacing is off, per-rune advances plus spacing when it is on.
func lineWidth(face *canvas.FontFace, s string, spacing float64) float64 {
	if spacing == 0 {
		return face.TextWidth(s)
	}
	w := 0.0
	n := 0
	for _, r := range s {
		w += face.TextWidth(string(r))
		n++
	}
	if n > 1 {
		w += spacing * float64(n-1)
	}
	return w
}

// measureFunc adapts this element's wrapping and metrics for the auto-fit
// binary search. Wrapping here and in painting share wrapLines, so the size
// the search settles on is the size the paint really needs.
func (p *painter) measureFunc(te *models.TextElement) autofit.MeasureFunc {
	mult := lineHeightMult(te.LineHeight)
	return func(text string, fontSize, maxWidth float64) (autofit.Metrics, error) {
		face := p.fonts.Face(te.FontFamily, fontSize, canvas.Black, te.FontWeight, te.Italic)
		width := func(s string) float64 { return lineWidth(face, s, te.LetterSpacing) }
		lines := wrapLines(text, maxWidth, width)
		return autofit.Metrics{
			Lines:  len(lines),
			Height: float64(len(lines)) * fontSize * mult,
			Width:  maxLineWidth(lines, width),
		}, nil
	}
}

func (p *painter) layoutText(te *models.TextElement, display string, boxW, boxH float64) textLayout {
	size := te.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	if te.AutoFit {
		c := autofit.Constraints{
			MinFontSize: te.MinFontSize,
			MaxFontSize: te.MaxFontSize,
			Padding:     te.AutoFitPadding,
			MaxLines:    te.MaxLines,
		}
		size = float64(autofit.BestFit(display, boxW, boxH, c, p.measureFunc(te)))
	}

	face := p.fonts.Face(te.FontFamily, size, canvas.Black, te.FontWeight, te.Italic)
	width := func(s string) float64 { return lineWidth(face, s, te.LetterSpacing) }
	lines := wrapLines(display, boxW, width)
	advance := size * lineHeightMult(te.LineHeight)

	return textLayout{
		fontSize: size,
		lines:    lines,
		advance:  advance,
		ascent:   face.Metrics().Ascent,
		width:    maxLineWidth(lines, width),
		height:   float64(len(lines)) * advance,
	}
}

// styleRun is a maximal stretch of one line sharing a single style.
type styleRun struct {
	text   string
	fill   string
	weight int
	italic bool
}

// lineRuns splits a line into style runs. lineStart is the rune offset of the
// line's first rune within the displayed string; spans must already be
// normalized against that string.
func lineRuns(line string, lineStart int, te *models.TextElement, spans []models.StyleSpan) []styleRun {
	runes := []rune(line)
	if len(runes) == 0 {
		return nil
	}

	base := styleRun{fill: te.Fill, weight: te.FontWeight, italic: te.Italic}
	if len(spans) == 0 {
		base.text = line
		return []styleRun{base}
	}

	styleAt := func(global int) styleRun {
		for _, sp := range spans {
			if global < sp.Start || global > sp.End {
				continue
			}
			run := base
			if sp.Fill != "" {
				run.fill = sp.Fill
			}
			if sp.FontWeight != 0 {
				run.weight = sp.FontWeight
			}
			if sp.Italic != nil {
				run.italic = *sp.Italic
			}
			return run
		}
		return base
	}

	var out []styleRun
	cur := styleAt(lineStart)
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) {
			next := styleAt(lineStart + i)
			if next == cur {
				continue
			}
			cur.text = string(runes[start:i])
			out = append(out, cur)
			cur = next
			start = i
			continue
		}
		cur.text = string(runes[start:])
		out = append(out, cur)
	}
	return out
}

// paintTextEl paints one text element: optional background chip, optional
// shadow, then the text itself, with hollow and stroke variants.
func (p *painter) paintTextEl(el *models.Element) {
	te := el.Text
	display := fields.Text(te.Text, p.row, p.mapping, te.Transform)
	if te.Dynamic && te.Field != "" {
		display = fields.Transform(fields.Resolve("{{"+te.Field+"}}", p.row, p.mapping), te.Transform)
	}

	lay := p.layoutText(te, display, el.Width, el.Height)
	spans := models.NormalizeSpans(te.Spans, len([]rune(display)))

	// Block bbox in template coordinates, horizontal position from alignment.
	blockX := el.X
	switch te.Align {
	case models.AlignCenter:
		blockX = el.X + (el.Width-lay.width)/2
	case models.AlignRight:
		blockX = el.X + el.Width - lay.width
	}
	blockY := el.Y

	// Shadow first: it sits behind the chip and the glyphs. The chip and
	// text silhouettes are offset, not blurred.
	if te.Shadow != nil {
		if col, err := parseColor(te.Shadow.Color); err == nil && !isTransparent(col) {
			sc := withOpacity(col, el.Opacity)
			if te.Background != nil {
				p.paintChip(te.Background, blockX+te.Shadow.OffsetX, blockY+te.Shadow.OffsetY, lay.width, lay.height, sc)
			} else {
				p.paintTextBlock(el, te, lay, spans, te.Shadow.OffsetX, te.Shadow.OffsetY, &sc)
			}
		}
	}

	if te.Background != nil {
		if col, err := parseColor(te.Background.Color); err == nil && !isTransparent(col) {
			p.paintChip(te.Background, blockX, blockY, lay.width, lay.height, withOpacity(col, el.Opacity))
		}
	}

	p.paintTextBlock(el, te, lay, spans, 0, 0, nil)
}

// paintChip draws the background chip around a text block.
func (p *painter) paintChip(bg *models.TextBackground, blockX, blockY, blockW, blockH float64, col color.RGBA) {
	pad := bg.Padding
	x := blockX - pad
	y := blockY - pad
	w := blockW + 2*pad
	h := blockH + 2*pad
	if w <= 0 || h <= 0 {
		return
	}

	var path *canvas.Path
	if bg.CornerRadius > 0 {
		r := bg.CornerRadius
		if max := minf(w, h) / 2; r > max {
			r = max
		}
		path = canvas.RoundedRectangle(w, h, r)
	} else {
		path = canvas.Rectangle(w, h)
	}
	p.ctx.SetStrokeColor(canvas.Transparent)
	p.ctx.SetFillColor(col)
	p.ctx.DrawPath(x, p.flipRect(y, h), path)
}

// paintTextBlock draws every line of the laid-out text. When override is
// non-nil all runs are painted in that single color (the shadow pass).
func (p *painter) paintTextBlock(el *models.Element, te *models.TextElement, lay textLayout, spans []models.StyleSpan, dx, dy float64, override *color.RGBA) {
	strokeCol, strokeErr := parseColor(te.Stroke)
	hasStroke := strokeErr == nil && !isTransparent(strokeCol) && te.StrokeWidth > 0
	strokeWidth := te.StrokeWidth
	if te.Hollow && !hasStroke {
		// Hollow text must show an outline even when no stroke was set.
		strokeCol = colorOr(te.Fill, canvas.Black)
		strokeWidth = maxf(te.StrokeWidth, 1)
		hasStroke = !isTransparent(strokeCol)
	}

	lineStart := 0
	for i, line := range lay.lines {
		lineW := 0.0
		runs := lineRuns(line, lineStart, te, spans)
		face := func(weight int, italic bool) *canvas.FontFace {
			return p.fonts.Face(te.FontFamily, lay.fontSize, canvas.Black, weight, italic)
		}
		for _, run := range runs {
			lineW += lineWidth(face(run.weight, run.italic), run.text, te.LetterSpacing)
		}

		x := el.X + dx
		switch te.Align {
		case models.AlignCenter:
			x = el.X + (el.Width-lineW)/2 + dx
		case models.AlignRight:
			x = el.X + el.Width - lineW + dx
		}
		baseline := el.Y + dy + lay.ascent + float64(i)*lay.advance

		for _, run := range runs {
			f := face(run.weight, run.italic)

			fill := withOpacity(colorOr(run.fill, canvas.Black), el.Opacity)
			if te.Hollow {
				fill = color.RGBA{}
			}
			if override != nil {
				fill = *override
			}

			p.ctx.SetFillColor(fill)
			if hasStroke && override == nil {
				p.ctx.SetStrokeColor(withOpacity(strokeCol, el.Opacity))
				p.ctx.SetStrokeWidth(strokeWidth)
			} else {
				p.ctx.SetStrokeColor(canvas.Transparent)
			}

			x = p.drawRun(f, run.text, x, baseline, te.LetterSpacing)
		}
		p.ctx.SetStrokeColor(canvas.Transparent)

		lineStart += len([]rune(line)) + 1 // separator swallowed by wrapping
	}
}

// drawRun paints one run starting at x, returning the advanced position.
func (p *painter) drawRun(face *canvas.FontFace, text string, x, baseline, spacing float64) float64 {
	if text == "" {
		return x
	}
	nb := p.flip(baseline)

	if spacing == 0 {
		path, _, err := face.ToPath(text)
		if err == nil && path != nil {
			p.ctx.DrawPath(x, nb, path)
		}
		return x + face.TextWidth(text)
	}

	for _, r := range text {
		s := string(r)
		path, _, err := face.ToPath(s)
		if err == nil && path != nil {
			p.ctx.DrawPath(x, nb, path)
		}
		x += face.TextWidth(s) + spacing
	}
	return x
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
