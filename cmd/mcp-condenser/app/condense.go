// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser"
	"github.com/teriyakichild/mcp-condenser/pkg/condenser/parser"
	"github.com/teriyakichild/mcp-condenser/pkg/condenser/tokens"
	"github.com/teriyakichild/mcp-condenser/pkg/config"
)

// newCondenseCmd creates the condense command: file or stdin through the
// full pipeline to stdout, with a compression-stats block on stderr.
func newCondenseCmd() *cobra.Command {
	var (
		output     string
		quiet      bool
		profile    string
		format     string
		heuristics string
	)

	cmd := &cobra.Command{
		Use:   "condense [input]",
		Short: "Condense a JSON/YAML/CSV/XML document into compact TOON text",
		Long: `Condense a structured document into compact TOON text for LLM
consumption. Reads the given file, or stdin when the argument is omitted
or "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			raw, err := readArg(args)
			if err != nil {
				return err
			}

			tree, _, err := parser.Parse(string(raw), format)
			if err != nil {
				return err
			}

			overrides, err := config.ParseHeuristicPairs(heuristics)
			if err != nil {
				return err
			}
			h, err := condenser.ResolveHeuristics(profile, overrides)
			if err != nil {
				return err
			}

			result := condenser.CondenseValue(tree, h)
			if !quiet {
				printStats(string(raw), result)
			}
			return writeOutput(output, result)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress compression stats on stderr")
	cmd.Flags().StringVar(&profile, "profile", "", "Heuristic profile (balanced, compact, precise)")
	cmd.Flags().StringVar(&format, "format", "", "Format hint (json, yaml, csv, tsv, xml)")
	cmd.Flags().StringVar(&heuristics, "heuristics", "", "Heuristic overrides as comma-separated key:val pairs")
	return cmd
}

// newEncodeCmd creates the encode command: raw TOON with no preprocessing.
func newEncodeCmd() *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "encode [input]",
		Short: "Encode a document as raw TOON without semantic preprocessing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			raw, err := readArg(args)
			if err != nil {
				return err
			}
			tree, _, err := parser.Parse(string(raw), format)
			if err != nil {
				return err
			}
			return writeOutput(output, condenser.EncodeTOON(tree))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "", "Format hint (json, yaml, csv, tsv, xml)")
	return cmd
}

func readArg(args []string) ([]byte, error) {
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	return readInput(path)
}

func writeOutput(path, text string) error {
	if path == "" {
		fmt.Println(text)
		return nil
	}
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "→ %s\n", path)
	return nil
}

func printStats(orig, condensed string) {
	counter := tokens.Default()
	method := "bpe/cl100k_base"
	if ie, ok := counter.(tokens.InitErrorer); ok && ie.InitErr() != nil {
		method = "len/4 estimate"
	}

	origTok := counter.Count(orig)
	condTok := counter.Count(condensed)
	charPct, tokPct := 0.0, 0.0
	if len(orig) > 0 {
		charPct = (1 - float64(len(condensed))/float64(len(orig))) * 100
	}
	if origTok > 0 {
		tokPct = (1 - float64(condTok)/float64(origTok)) * 100
	}

	fmt.Fprintf(os.Stderr, "=== Compression Stats (%s) ===\n", method)
	fmt.Fprintf(os.Stderr, "Original:  %8d chars  (%d tokens)\n", len(orig), origTok)
	fmt.Fprintf(os.Stderr, "Condensed: %8d chars  (%d tokens)\n", len(condensed), condTok)
	fmt.Fprintf(os.Stderr, "Reduction: %.1f%% chars, %.1f%% tokens\n", charPct, tokPct)
}
