package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/engine"
)

var saveMessage string

var saveCmd = &cobra.Command{
	Use:   "save <file|->",
	Short: "Store a pedigree document as the new current version",
	Long: `Read a pedigree document (any supported schema version), migrate it,
reconcile the proband with the patient record and save it with a snapshot.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		text, err := readInput(args[0])
		must("Failed to read input", err)

		s, _ := openSession()
		defer s.Close()

		ctx, cancel := commandContext()
		defer cancel()

		// The stored version becomes the saved checkpoint.
		if err := s.Engine.Load(ctx); err != nil && !errors.Is(err, core.ErrNoDocument) {
			fatal("Failed to load stored pedigree", err)
		}
		must("Failed to load document", s.Engine.LoadText(ctx, text, engine.LoadOptions{}))

		if !s.History.HasUnsavedChanges() {
			fmt.Println("Nothing to save")
			return
		}

		reason := saveMessage
		if reason == "" {
			reason = "save pedigree"
		}
		must("Failed to save pedigree", s.Engine.SaveAndWait(core.WithChangeReason(ctx, reason)))
		fmt.Println("Saved pedigree")
	},
}

func init() {
	saveCmd.Flags().StringVarP(&saveMessage, "message", "m", "", "Change reason recorded with the version")
	rootCmd.AddCommand(saveCmd)
}
