package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/pedigree"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of pedigree",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pedigree version %s\n", strings.TrimSpace(pedigree.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
