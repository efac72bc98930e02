package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientNarrative/internal/narrative"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph files...>",
	Short: "Check narrative graph files",
	Long:  "Parses each YAML or JSON graph and reports dangling transitions, unreachable nodes and malformed node types. Exits non-zero if any file has errors.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			if !validateFile(out, path) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d graph(s) invalid", failed, len(args))
		}
		return nil
	},
}

func validateFile(out io.Writer, path string) bool {
	format, err := narrative.FormatFromPath(path)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", path, err)
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", path, err)
		return false
	}
	g, err := narrative.DecodeGraph(data, format)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", path, err)
		return false
	}
	if g.ID == "" {
		g.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	result := g.Validate()
	for _, e := range result.Errors {
		fmt.Fprintf(out, "%s: error: %s\n", path, e)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "%s: warning: %s\n", path, w)
	}
	if result.Valid {
		fmt.Fprintf(out, "%s: ok (%d nodes)\n", path, len(g.Nodes))
	}
	return result.Valid
}
