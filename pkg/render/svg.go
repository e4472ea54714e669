package render

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// BBox is an axis-aligned bounding box in SVG user units.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SVG wraps the text of an SVG document together with its bounding box.
// Methods edit the root <svg> tag in place and return the receiver.
type SVG struct {
	text    string
	bbox    BBox
	svgBBox BBox
	scale   float64
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="(-?[0-9.]+)\s+(-?[0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
	sizeRe    = regexp.MustCompile(`(<svg [^<>]+) width=["-]?\d+"? height=["-]?\d+"?`)
	setBoxRe  = regexp.MustCompile(`(<svg[^<>]+) viewBox="[^<>"]*"`)
	styleRe   = regexp.MustCompile(`(<svg [^<>]+) style="`)
)

// NewSVG wraps text. A zero scale means 1.
func NewSVG(text string, bbox BBox, scale float64) *SVG {
	if scale == 0 {
		scale = 1
	}
	return &SVG{text: text, bbox: bbox, svgBBox: bbox, scale: scale}
}

// Text returns the SVG source.
func (s *SVG) Text() string { return s.text }

// BBox returns the current bounding box.
func (s *SVG) BBox() BBox { return s.bbox }

// Copy returns an independent wrapper with the same text, box and scale.
func (s *SVG) Copy() *SVG {
	return &SVG{text: s.text, bbox: s.bbox, svgBBox: s.svgBBox, scale: s.scale}
}

// NoAspectRatioPreservation lets the image stretch to its box.
func (s *SVG) NoAspectRatioPreservation() *SVG {
	s.text = strings.Replace(s.text, `preserveAspectRatio="xMinYMin"`, `preserveAspectRatio="none"`, 1)
	return s
}

// Scale resizes the rendered width and height by factor.
func (s *SVG) Scale(factor float64) *SVG {
	s.scale = factor
	s.bbox.Width = math.Floor(s.bbox.Width * factor)
	s.bbox.Height = math.Floor(s.bbox.Height * factor)
	s.text = sizeRe.ReplaceAllString(s.text, fmt.Sprintf(`${1} width="%s" height="%s"`, num(s.bbox.Width), num(s.bbox.Height)))
	return s
}

// SetViewBox crops the image to the given window, expressed in scaled units
// relative to the original bounding box.
func (s *SVG) SetViewBox(xOffset, yOffset, width, height float64) *SVG {
	width = math.Floor(width)
	height = math.Floor(height)
	box := fmt.Sprintf(`${1} viewBox="%s %s %s %s"`,
		num(s.svgBBox.X+xOffset/s.scale), num(s.svgBBox.Y+yOffset/s.scale),
		num(width/s.scale), num(height/s.scale))
	s.text = setBoxRe.ReplaceAllString(s.text, box)
	s.text = sizeRe.ReplaceAllString(s.text, fmt.Sprintf(`${1} width="%s" height="%s"`, num(width), num(height)))
	return s
}

// AddCenteringCSS prepends centering rules to the root style attribute.
func (s *SVG) AddCenteringCSS() *SVG {
	loc := styleRe.FindStringSubmatchIndex(s.text)
	if loc == nil {
		return s
	}
	s.text = s.text[:loc[1]] + "display:block; margin: auto; " + s.text[loc[1]:]
	return s
}

// Canonical rewrites the root tag of a Graphviz SVG so that the wrapper
// methods can address it, and reports its bounding box.
func Canonical(svg []byte) (*SVG, error) {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return nil, fmt.Errorf("svg has no viewBox")
	}
	var vals [4]float64
	for i := range vals {
		v, err := strconv.ParseFloat(string(match[i+1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid viewBox: %w", err)
		}
		vals[i] = v
	}
	bbox := BBox{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%s" height="%s" viewBox="%s %s %s %s" preserveAspectRatio="xMinYMin" style="">`,
		num(math.Floor(bbox.Width)), num(math.Floor(bbox.Height)),
		num(bbox.X), num(bbox.Y), num(bbox.Width), num(bbox.Height))

	text := svgTagRe.ReplaceAllLiteralString(string(svg), tag)
	return NewSVG(text, bbox, 1), nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
