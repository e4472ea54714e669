package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/pedigree/internal/platform"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a pedigree directory (git init)",
	Long: `Initialize a pedigree directory. The system directory is created and,
unless --gitless is set, a git repository records every save.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir, err := os.Getwd()
		if err != nil {
			fatal("Failed to get CWD", err)
		}
		if len(args) == 1 {
			dir = args[0]
		}

		s, err := platform.New(dir,
			platform.WithLogger(slog.Default()),
			platform.WithAutoInit(true),
			platform.WithVersioning(!gitless),
			platform.WithDevSafety(false),
			platform.WithSnapshots(false),
		)
		if err != nil {
			fatal("Failed to initialize pedigree", err)
		}
		defer s.Close()

		fmt.Println("Initialized empty pedigree in", dir)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
