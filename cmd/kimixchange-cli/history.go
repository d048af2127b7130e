package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fpang/kimixchange/internal/cli"
	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/logging"
	"github.com/fpang/kimixchange/internal/media"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var exportOutFlag string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export past swaps",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved swaps, newest first",
	Run:   runHistoryList,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all saved swaps to a ZIP archive",
	Run:   runHistoryExport,
}

func init() {
	historyExportCmd.Flags().StringVarP(&exportOutFlag, "out", "o", "kimixchange-history.zip", "Archive path")
	historyCmd.AddCommand(historyListCmd, historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx := context.Background()
	records := openStore(ctx).Load(ctx)
	if len(records) == 0 {
		fmt.Println("No saved swaps.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tAGE\tRESULT")
	now := time.Now()
	for _, rec := range records {
		created := rec.CreatedAt()
		size := "?"
		if _, data, err := media.DecodeDataURL(rec.ResultURL); err == nil {
			size = cli.FormatBytes(int64(len(data)))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.ID, created.Local().Format(time.DateTime), cli.FormatDurationShort(now.Sub(created)), size)
	}
	tw.Flush()
	fmt.Printf("\n%d of %d slots used\n", len(records), history.Capacity)
}

func runHistoryExport(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx := context.Background()
	records := openStore(ctx).Load(ctx)

	f, err := os.Create(exportOutFlag)
	if err != nil {
		log.Fatal().Err(err).Str("path", exportOutFlag).Msg("Failed to create archive")
	}
	if err := history.Export(f, records); err != nil {
		f.Close()
		log.Fatal().Err(err).Msg("Export failed")
	}
	if err := f.Close(); err != nil {
		log.Fatal().Err(err).Msg("Failed to finalize archive")
	}
	fmt.Printf("Exported %d swaps to %s\n", len(records), exportOutFlag)
}
