// Package main exposes face swapping to MCP clients over stdio.
//
// Tools:
//
//	face_swap     swap the face in source_path into target_path
//	list_history  list saved swaps, newest first
//
// Logs go to stderr; stdout carries the protocol.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/kimixchange/internal/cli"
	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/logging"
	"github.com/fpang/kimixchange/internal/swap"
)

var modelFlag string

var rootCmd = &cobra.Command{
	Use:   "kimixchange-mcp",
	Short: "MCP stdio server for KimiXchange face swaps",
	Run:   runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", swap.ModelFromEnv(), "Gemini image model to use")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	histCfg := history.ConfigFromEnv()
	backend, err := history.Open(ctx, histCfg)
	if err != nil {
		log.Fatal().Err(err).Str("kind", histCfg.Kind).Msg("Failed to open history backend")
	}

	tools := &toolset{
		swapper: cli.InitSwapClient(ctx, false, swap.WithModel(modelFlag)),
		store:   history.NewStore(backend),
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "kimixchange", Version: commitHash}, nil)
	tools.register(server)

	logging.NewStartupLogger("kimixchange-mcp").
		CommitHash(commitHash).
		Config("buildTime", buildTime).
		Config("model", modelFlag).
		Config("historyBackend", histCfg.Kind).
		Log()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("MCP server stopped")
	}
}
