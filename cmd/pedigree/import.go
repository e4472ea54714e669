package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/engine"
	"github.com/aretw0/pedigree/pkg/graph"
)

var (
	importFormat  string
	importOptions []string
	importDryRun  bool
)

var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Replace the pedigree with a PED, LINKAGE or simple JSON file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		payload, err := readInput(args[0])
		must("Failed to read input", err)

		format := importFormat
		if format == "" {
			format = guessFormat(args[0])
		}

		opts := core.ImportOptions{}
		for _, kv := range importOptions {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				fatal("Invalid import option", fmt.Errorf("%q is not key=value", kv))
			}
			opts[k] = v
		}

		s, _ := openSession()
		defer s.Close()

		ctx, cancel := commandContext()
		defer cancel()

		err = s.Engine.Import(ctx, payload, format, opts, engine.LoadOptions{CenterOnRoot: true})
		must("Failed to import pedigree", err)

		if importDryRun {
			text, err := s.Engine.Serialize()
			must("Failed to serialize pedigree", err)
			printDocument(text, true)
			return
		}

		err = s.Engine.SaveAndWait(core.WithChangeReason(ctx, "import "+filepath.Base(args[0])))
		must("Failed to save pedigree", err)
		fmt.Printf("Imported %s pedigree with %d people\n", format, len(s.Graph.Graph().Persons))
	},
}

// readInput reads a file, or stdin for "-".
func readInput(name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(name)
	return string(b), err
}

func guessFormat(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return graph.FormatSimpleJSON
	case ".pre", ".lnk":
		return graph.FormatLinkage
	default:
		return graph.FormatPED
	}
}

func init() {
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "Input format: "+strings.Join(graph.Formats(), ", "))
	importCmd.Flags().StringArrayVarP(&importOptions, "option", "o", nil, "Format option key=value (repeatable)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Print the result instead of saving")
	rootCmd.AddCommand(importCmd)
}
