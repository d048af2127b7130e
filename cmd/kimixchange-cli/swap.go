package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fpang/kimixchange/internal/cli"
	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/logging"
	"github.com/fpang/kimixchange/internal/media"
	"github.com/fpang/kimixchange/internal/swap"
	"github.com/fpang/kimixchange/internal/workflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// swap flags
var (
	sourceFlag      string
	targetFlag      string
	outFlag         string
	acceptFlag      bool
	noEnhanceFlag   bool
	qualityFlag     string
	blendFlag       float64
	modelFlag       string
	statusDelayFlag time.Duration
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Run one face swap and save the result",
	Run:   runSwap,
}

func init() {
	defaults := swap.DefaultConfig()
	swapCmd.Flags().StringVarP(&sourceFlag, "source", "s", "", "Photo containing the face to use (opens a dialog if empty)")
	swapCmd.Flags().StringVarP(&targetFlag, "target", "t", "", "Photo whose person receives the face (opens a dialog if empty)")
	swapCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Where to write the result (default kimixchange-<time>.<ext>)")
	swapCmd.Flags().BoolVar(&acceptFlag, "accept-guidelines", false, "Accept the usage guidelines without prompting")
	swapCmd.Flags().BoolVar(&noEnhanceFlag, "no-enhance", !defaults.Enhance, "Skip the sharpening and upscaling instruction")
	swapCmd.Flags().StringVar(&qualityFlag, "quality", string(defaults.Quality), "Quality hint: low or high")
	swapCmd.Flags().Float64Var(&blendFlag, "blend", defaults.BlendStrength, "Blend strength hint between 0 and 1")
	swapCmd.Flags().StringVarP(&modelFlag, "model", "m", swap.ModelFromEnv(), "Gemini image model to use")
	swapCmd.Flags().DurationVar(&statusDelayFlag, "status-delay", workflow.DefaultStatusDelay, "Pause between progress messages")
	rootCmd.AddCommand(swapCmd)
}

func runSwap(cmd *cobra.Command, args []string) {
	logging.Init()

	quality, err := swap.ParseQuality(qualityFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --quality")
	}
	cfg := swap.Config{Quality: quality, Enhance: !noEnhanceFlag, BlendStrength: blendFlag}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid swap options")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx)
	client := cli.InitSwapClient(ctx, false, swap.WithModel(modelFlag))

	machine := workflow.New(client, store,
		workflow.WithSwapConfig(cfg),
		workflow.WithStatusDelay(statusDelayFlag),
		workflow.WithProgress(func(status string) {
			fmt.Printf("  %s\n", status)
		}),
	)

	if !acceptFlag && !cli.PromptForConsent(os.Stdin, os.Stdout) {
		fmt.Println("Guidelines not accepted. Nothing was sent.")
		os.Exit(1)
	}
	if err := machine.SetConsentChecked(true); err != nil {
		log.Fatal().Err(err).Msg("Consent failed")
	}
	if err := machine.AcceptConsent(); err != nil {
		log.Fatal().Err(err).Msg("Consent failed")
	}

	sourcePath := resolveOrPick(sourceFlag, "Select the source face")
	targetPath := resolveOrPick(targetFlag, "Select the target scene")

	if err := submit(sourcePath, machine.SubmitSource); err != nil {
		log.Fatal().Err(err).Msg("Could not load source image")
	}

	fmt.Printf("\nSwapping %s into %s with %s\n", filepath.Base(sourcePath), filepath.Base(targetPath), client.Model())
	start := time.Now()
	err = submit(targetPath, func(r io.Reader, name string) error {
		return machine.SubmitTarget(ctx, r, name)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load target image")
	}

	done := make(chan struct{})
	go func() {
		machine.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("Interrupted, abandoning swap")
		machine.Reset()
		<-done
		os.Exit(130)
	}

	snap := machine.Snapshot()
	if snap.State != workflow.StateResult {
		fmt.Fprintf(os.Stderr, "\nSwap failed: %s\n", snap.Attempt.ErrorMessage)
		os.Exit(1)
	}

	mimeType, data, err := media.DecodeDataURL(snap.Attempt.Result)
	if err != nil {
		log.Fatal().Err(err).Msg("Result is not a valid image payload")
	}
	out := outFlag
	if out == "" {
		out = fmt.Sprintf("kimixchange-%s%s", time.Now().Format("20060102-150405"), history.ExtensionFor(mimeType))
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", out).Msg("Failed to write result")
	}
	fmt.Printf("\nDone in %s. Result written to %s (%s)\n", cli.FormatDurationShort(time.Since(start)), out, cli.FormatBytes(int64(len(data))))
}

// resolveOrPick validates a flag path, or opens a file dialog when empty.
func resolveOrPick(path, title string) string {
	if path == "" {
		picked, err := cli.PickImage(title)
		if err != nil {
			if errors.Is(err, cli.ErrPickCanceled) {
				fmt.Println("No file selected.")
				os.Exit(1)
			}
			log.Fatal().Err(err).Msg("File dialog failed; pass --source and --target instead")
		}
		path = picked
	}
	resolved, err := cli.ResolveImagePath(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid image path")
	}
	return resolved
}

func submit(path string, fn func(r io.Reader, name string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f, filepath.Base(path))
}

func openStore(ctx context.Context) *history.Store {
	cfg := history.ConfigFromEnv()
	backend, err := history.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("kind", cfg.Kind).Msg("Failed to open history backend")
	}
	return history.NewStore(backend)
}
