package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/render"
)

var (
	renderFormat string
	renderOut    string
	renderScale  float64
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the current pedigree as SVG or DOT",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, _ := openSession(noSnapshotsOption()...)
		defer s.Close()

		ctx, cancel := commandContext()
		defer cancel()

		err := s.Engine.Load(ctx)
		if errors.Is(err, core.ErrNoDocument) {
			fatal("Nothing to render", err)
		}
		must("Failed to load pedigree", err)

		dot := render.DOT(s.Graph.Graph())
		var out []byte
		switch renderFormat {
		case "dot":
			out = []byte(dot)
		case "svg":
			raw, err := render.RenderSVG(ctx, dot)
			must("Failed to render", err)
			svg, err := render.Canonical(raw)
			must("Failed to normalize SVG", err)
			if renderScale > 0 && renderScale != 1 {
				svg = svg.Scale(renderScale)
			}
			out = []byte(svg.AddCenteringCSS().Text())
		default:
			fatal("Unknown format", fmt.Errorf("%q (want svg or dot)", renderFormat))
		}

		if renderOut == "" || renderOut == "-" {
			_, _ = os.Stdout.Write(out)
			return
		}
		must("Failed to write output", os.WriteFile(renderOut, out, 0644))
		fmt.Fprintln(os.Stderr, "Wrote", renderOut)
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "svg", "Output format: svg or dot")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "Output file (default stdout)")
	renderCmd.Flags().Float64Var(&renderScale, "scale", 1, "Scale factor for SVG output")
	rootCmd.AddCommand(renderCmd)
}
