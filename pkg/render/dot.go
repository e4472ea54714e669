// Package render draws the pedigree as an SVG snapshot using Graphviz.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/graph"
)

// DOT renders g in the Graphviz DOT language. Persons are drawn with the
// conventional pedigree shapes and relationships as junction points.
func DOT(g graph.Graph) string {
	var buf bytes.Buffer
	buf.WriteString("digraph pedigree {\n")
	buf.WriteString("  graph [nodesep=0.4];\n")
	buf.WriteString("  edge [arrowhead=none];\n")

	for _, p := range g.Persons {
		attrs := []string{
			fmt.Sprintf("label=%q", label(p)),
			"shape=" + shape(p.Gender),
		}
		if p.Affected {
			attrs = append(attrs, "style=filled", "fillcolor=grey")
		}
		if p.ID == graph.ProbandID {
			attrs = append(attrs, "penwidth=2")
		}
		fmt.Fprintf(&buf, "  n%d [%s];\n", p.ID, strings.Join(attrs, ", "))
	}

	for _, r := range g.Relationships {
		fmt.Fprintf(&buf, "  n%d [shape=point, width=0.05];\n", r.ID)
		fmt.Fprintf(&buf, "  { rank=same; n%d; n%d; n%d; }\n", r.Partners[0], r.ID, r.Partners[1])
		fmt.Fprintf(&buf, "  n%d -> n%d;\n  n%d -> n%d;\n", r.Partners[0], r.ID, r.ID, r.Partners[1])
		for _, c := range r.Children {
			fmt.Fprintf(&buf, "  n%d -> n%d;\n", r.ID, c)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func label(p graph.Person) string {
	name := p.DisplayName()
	if name == "" {
		return fmt.Sprintf("#%d", p.ID)
	}
	return name
}

func shape(g core.Gender) string {
	switch g {
	case core.GenderMale:
		return "box"
	case core.GenderFemale:
		return "ellipse"
	default:
		return "diamond"
	}
}

// RenderSVG renders a DOT graph to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
