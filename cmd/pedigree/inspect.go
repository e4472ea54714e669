package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"

	"github.com/aretw0/pedigree/internal/platform"
	"github.com/aretw0/pedigree/pkg/engine"
)

var (
	inspectLoad    bool
	inspectDiagram bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the internal state of the engine and the store",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, _ := openSession(noSnapshotsOption()...)
		defer s.Close()

		if inspectLoad {
			ctx, cancel := commandContext()
			defer cancel()
			// The outcome is part of the reported state.
			_ = s.Engine.Load(ctx)
		}

		if inspectDiagram {
			config := introspection.DefaultDiagramConfig()
			config.SecondaryID = "pedigree"
			config.SecondaryLabel = "Pedigree Session"
			fmt.Println(introspection.TreeDiagram(sessionTree(s), config))
			return
		}

		report := map[string]any{
			s.Engine.ComponentType(): s.Engine.State(),
			"view":                   s.View.Viewport(),
		}
		if intro, ok := s.Store.(introspection.Introspectable); ok {
			report[componentName(s.Store)] = intro.State()
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		must("Failed to encode state", enc.Encode(report))
	},
}

type stateNode struct {
	Name     string
	Status   string
	Metadata map[string]string
	Children []stateNode
}

func componentName(v any) string {
	if c, ok := v.(introspection.Component); ok {
		return c.ComponentType()
	}
	return "store"
}

// sessionTree maps the session onto diagram nodes. Status values follow
// introspection.DefaultStyles().
func sessionTree(s *platform.Session) stateNode {
	st := s.Engine.State().(engine.EngineState)

	engineStatus := "suspended"
	if st.Phase != engine.PhaseIdle.String() {
		engineStatus = "running"
	}
	if st.LastError != "" {
		engineStatus = "failed"
	}

	storeNode := stateNode{
		Name:     "Store",
		Status:   "running",
		Metadata: map[string]string{"type": componentName(s.Store)},
	}
	if _, ok := s.Versioned(); ok {
		storeNode.Metadata["versions"] = "yes"
	}

	sourceStatus := "stopped"
	if s.Source != nil {
		sourceStatus = "running"
	}

	return stateNode{
		Name:   "Session",
		Status: "running",
		Metadata: map[string]string{
			"type": "container",
		},
		Children: []stateNode{
			{
				Name:   "Engine",
				Status: engineStatus,
				Metadata: map[string]string{
					"type":  "process",
					"phase": st.Phase,
					"loads": fmt.Sprintf("%d", st.Stats.Loads),
					"saves": fmt.Sprintf("%d", st.Stats.Saves),
				},
				Children: []stateNode{storeNode},
			},
			{
				Name:     "Proband source",
				Status:   sourceStatus,
				Metadata: map[string]string{"type": "goroutine"},
			},
		},
	}
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectLoad, "load", false, "Load the pedigree before reporting")
	inspectCmd.Flags().BoolVar(&inspectDiagram, "diagram", false, "Print a Mermaid diagram instead of JSON")
	rootCmd.AddCommand(inspectCmd)
}
