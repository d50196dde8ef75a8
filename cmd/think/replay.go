package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/fastertools/ftl-tool-think/internal/chain"
	"github.com/fastertools/ftl-tool-think/internal/replay"
)

var (
	replayPolicy string
	replayStrict bool
	replayJSON   bool
	replayColor  string
)

var replayCmd = &cobra.Command{
	Use:   "replay <file.jsonl|->",
	Short: "Replay a JSONL transcript of tool arguments through a fresh chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayPolicy, "duplicates", "permit", "duplicate number policy: permit, reject or revise")
	replayCmd.Flags().BoolVar(&replayStrict, "strict", false, "stop at the first rejected line")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print rendered steps as JSON")
	replayCmd.Flags().StringVar(&replayColor, "color", "auto", "colour output: auto, always or never")
}

func runReplay(cmd *cobra.Command, args []string) error {
	policy, err := chain.ParseDuplicatePolicy(replayPolicy)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := cmd.OutOrStdout()
	stats, err := replay.Run(in, out, replay.Options{
		Policy: policy,
		Strict: replayStrict,
		JSON:   replayJSON,
		Styled: !replayJSON && useColor(replayColor),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d lines, %d accepted, %d rejected\n", stats.Lines, stats.Accepted, stats.Rejected)
	return nil
}

func useColor(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
