package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/pedigree/pkg/core"
)

var (
	showPretty  bool
	showVersion string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current pedigree document",
	Long: `Load the stored pedigree (migrated to the current format and
reconciled with the patient record) and print it as JSON.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, _ := openSession()
		defer s.Close()

		ctx, cancel := commandContext()
		defer cancel()

		var err error
		if showVersion != "" {
			err = s.Engine.RestoreVersion(ctx, showVersion)
		} else {
			err = s.Engine.Load(ctx)
		}
		if errors.Is(err, core.ErrNoDocument) {
			fmt.Fprintln(os.Stderr, "No pedigree saved yet")
			os.Exit(1)
		}
		must("Failed to load pedigree", err)

		text, err := s.Engine.Serialize()
		must("Failed to serialize pedigree", err)
		printDocument(text, showPretty)
	},
}

func printDocument(text string, pretty bool) {
	if !pretty {
		fmt.Println(text)
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		fatal("Failed to format document", err)
	}
	fmt.Println(buf.String())
}

func init() {
	showCmd.Flags().BoolVarP(&showPretty, "pretty", "p", false, "Indent the JSON output")
	showCmd.Flags().StringVar(&showVersion, "at", "", "Show a prior version instead of the latest")
	rootCmd.AddCommand(showCmd)
}

