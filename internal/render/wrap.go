package render

import "strings"

// wrapLines breaks text into lines no wider than maxWidth, breaking only at
// word boundaries. Explicit newlines always break. A single word wider than
// maxWidth stays on its own line and overflows; auto-fit measurement and
// painting both call this function, so the two always agree on wrapping.
func wrapLines(text string, maxWidth float64, width func(string) float64) []string {
	if text == "" {
		return []string{""}
	}

	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}

		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if maxWidth > 0 && width(candidate) > maxWidth {
				out = append(out, line)
				line = w
				continue
			}
			line = candidate
		}
		out = append(out, line)
	}
	return out
}

// maxLineWidth returns the widest measured line.
func maxLineWidth(lines []string, width func(string) float64) float64 {
	widest := 0.0
	for _, l := range lines {
		if w := width(l); w > widest {
			widest = w
		}
	}
	return widest
}
