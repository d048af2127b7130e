package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fpang/kimixchange/internal/cli"
	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/logging"
	"github.com/fpang/kimixchange/internal/metrics"
	"github.com/fpang/kimixchange/internal/swap"
	"github.com/fpang/kimixchange/internal/webapi"
	"github.com/fpang/kimixchange/internal/workflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

//go:embed all:frontend_dist
var frontendFS embed.FS

// CLI flags
var (
	portFlag        int
	modelFlag       string
	statusDelayFlag time.Duration
	rateFlag        int
	validateFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "kimixchange-web",
	Short: "Local web UI for the KimiXchange face swap workflow",
	Long: `KimiXchange Web starts a local web server that walks you through a face swap:
accept the usage guidelines, pick a source face, pick a target scene, and
review the result. Completed swaps are kept in a local history (last 20).

Examples:
  kimixchange-web
  kimixchange-web --port 9090
  kimixchange-web --model gemini-3-pro-image-preview --validate`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", swap.ModelFromEnv(), "Gemini image model to use")
	rootCmd.Flags().DurationVar(&statusDelayFlag, "status-delay", statusDelayFromEnv(), "Pause between progress messages while processing")
	rootCmd.Flags().IntVar(&rateFlag, "rate-limit", 0, "Maximum swap requests per minute (0 = unlimited)")
	rootCmd.Flags().BoolVar(&validateFlag, "validate", false, "Validate the API key at startup and exit on failure")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func statusDelayFromEnv() time.Duration {
	if d, err := time.ParseDuration(os.Getenv("KIMIXCHANGE_STATUS_DELAY")); err == nil {
		return d
	}
	return workflow.DefaultStatusDelay
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	swapClient := cli.InitSwapClient(ctx, validateFlag,
		swap.WithModel(modelFlag),
		swap.WithRateLimit(rateFlag),
		swap.WithMetrics(metrics.Discard()),
	)

	histCfg := history.ConfigFromEnv()
	backend, err := history.Open(ctx, histCfg)
	if err != nil {
		log.Fatal().Err(err).Str("kind", histCfg.Kind).Msg("Failed to open history backend")
	}
	store := history.NewStore(backend)
	loaded := store.Load(ctx)

	machine := workflow.New(swapClient, store,
		workflow.WithStatusDelay(statusDelayFlag),
	)

	api := webapi.New(webapi.Config{
		Machine: machine,
		Swapper: swapClient,
		Store:   store,
		Picker:  pickImage,
		Model:   swapClient.Model(),
	})

	mux := http.NewServeMux()
	api.Register(mux)

	// Frontend static files (SPA fallback)
	frontendSub, err := fs.Sub(frontendFS, "frontend_dist")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to access embedded frontend")
	}
	fileServer := http.FileServer(http.FS(frontendSub))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Security headers
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' blob: data:; style-src 'self' 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// SPA fallback: if the file doesn't exist, serve index.html
		path := r.URL.Path
		if path != "/" {
			f, err := frontendSub.Open(strings.TrimPrefix(path, "/"))
			if err != nil {
				r.URL.Path = "/"
			} else {
				f.Close()
			}
		}
		fileServer.ServeHTTP(w, r)
	})

	handler := webapi.Chain(mux, webapi.WithLogging, webapi.WithCORS, webapi.WithGzip)

	addr := fmt.Sprintf(":%d", portFlag)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		machine.Reset()
		machine.Wait()
	}()

	logging.NewStartupLogger("kimixchange-web").
		CommitHash(commitHash).
		Config("buildTime", buildTime).
		Config("model", swapClient.Model()).
		Config("historyBackend", histCfg.Kind).
		Config("historyRecords", fmt.Sprint(len(loaded))).
		Config("statusDelay", statusDelayFlag.String()).
		Feature("rateLimit", rateFlag > 0).
		Feature("keyValidation", validateFlag).
		InitDuration(time.Since(initStart)).
		Log()

	log.Info().Int("port", portFlag).Msg("Starting web server")
	fmt.Printf("\n  KimiXchange: http://localhost:%d\n\n", portFlag)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// pickImage adapts the native dialog to the API's cancel sentinel.
func pickImage(title string) (string, error) {
	path, err := cli.PickImage(title)
	if errors.Is(err, cli.ErrPickCanceled) {
		return "", webapi.ErrPickCanceled
	}
	return path, err
}
