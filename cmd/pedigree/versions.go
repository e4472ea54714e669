package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	versionsJSON  bool
	versionsLimit int
)

var versionsCmd = &cobra.Command{
	Use:     "versions",
	Aliases: []string{"log"},
	Short:   "List saved versions, newest first",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, _ := openSession(noSnapshotsOption()...)
		defer s.Close()

		ctx, cancel := commandContext()
		defer cancel()

		versions, err := s.Engine.Versions(ctx)
		must("Failed to list versions", err)
		if versionsLimit > 0 && len(versions) > versionsLimit {
			versions = versions[:versionsLimit]
		}

		if versionsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			must("Failed to encode versions", enc.Encode(versions))
			return
		}

		if len(versions) == 0 {
			fmt.Println("No versions")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSAVED\tMESSAGE")
		for _, v := range versions {
			fmt.Fprintf(w, "%s\t%s\t%s\n", v.ID, humanize.Time(v.Created), v.Message)
		}
		_ = w.Flush()
	},
}

func init() {
	versionsCmd.Flags().BoolVar(&versionsJSON, "json", false, "Output as JSON")
	versionsCmd.Flags().IntVarP(&versionsLimit, "limit", "n", 0, "Show at most n versions")
	rootCmd.AddCommand(versionsCmd)
}
