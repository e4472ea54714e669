package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/pedigree/pkg/core"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <version>",
	Short: "Make a prior version the current one",
	Long: `Load a prior version, migrate it and save it as a new version. The
history of the store is never rewritten.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]

		s, _ := openSession()
		defer s.Close()

		ctx, cancel := commandContext()
		defer cancel()

		must("Failed to restore version", s.Engine.RestoreVersion(ctx, id))
		must("Failed to save pedigree", s.Engine.SaveAndWait(core.WithChangeReason(ctx, "restore "+id)))
		fmt.Println("Restored version", id)
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
