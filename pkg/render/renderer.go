package render

import (
	"context"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/graph"
)

// Renderer produces the image saved next to each document.
type Renderer struct {
	Model *graph.Model
}

// NewRenderer creates a Renderer reading from m.
func NewRenderer(m *graph.Model) *Renderer {
	return &Renderer{Model: m}
}

// Snapshot implements core.AuxRenderer.
func (r *Renderer) Snapshot(ctx context.Context) ([]byte, error) {
	out, err := RenderSVG(ctx, DOT(r.Model.Graph()))
	if err != nil {
		return nil, err
	}
	svg, err := Canonical(out)
	if err != nil {
		return nil, err
	}
	return []byte(svg.AddCenteringCSS().Text()), nil
}

var _ core.AuxRenderer = (*Renderer)(nil)
