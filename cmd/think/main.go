// think is the structured reasoning tool server.
//
// It hosts the structured_reasoning tool, which records revisable,
// branchable chains of reasoning steps, over:
//   - MCP JSON-RPC on HTTP with an SSE step feed (think serve)
//   - MCP JSON-RPC on stdin/stdout (think stdio)
//   - offline transcript replay (think replay)
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fastertools/ftl-tool-think/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "think",
	Short:         "Structured reasoning tool server",
	Long:          `think records revisable, branchable chains of reasoning steps and exposes them as the structured_reasoning MCP tool.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, stdioCmd, replayCmd)
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("think failed")
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return cfg, nil
}
