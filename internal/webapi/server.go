// Package webapi exposes the swap workflow and history over HTTP. The same
// routes back the local web UI and the Lambda; the Lambda runs without a
// workflow machine and serves only the stateless routes.
package webapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/swap"
	"github.com/fpang/kimixchange/internal/workflow"
	"github.com/patrickmn/go-cache"
)

// maxUploadBytes bounds a multipart request body. Image size itself is not
// validated; this only protects the server.
const maxUploadBytes = 100 << 20

// ErrPickCanceled is returned by a Picker when the user dismisses the dialog.
var ErrPickCanceled = errors.New("file selection canceled")

// Picker asks the local user for an image file and returns its path.
type Picker func(title string) (string, error)

// Config wires the server's collaborators.
type Config struct {
	// Machine is the single workflow attempt. Nil disables the workflow routes.
	Machine *workflow.Machine
	// Swapper serves POST /api/swap.
	Swapper workflow.Swapper
	// SwapConfig is the default for POST /api/swap when the form omits fields.
	SwapConfig swap.Config
	Store      *history.Store
	// Picker enables POST /api/pick. Only the desktop binary sets it.
	Picker Picker
	// Model is reported by /api/health.
	Model string
}

// Server holds handler dependencies.
type Server struct {
	cfg    Config
	thumbs *cache.Cache
}

// New creates a Server. Store and Swapper are required.
func New(cfg Config) *Server {
	if cfg.SwapConfig == (swap.Config{}) {
		cfg.SwapConfig = swap.DefaultConfig()
	}
	return &Server{
		cfg:    cfg,
		thumbs: cache.New(30*time.Minute, 10*time.Minute),
	}
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)

	if s.cfg.Machine != nil {
		mux.HandleFunc("GET /api/state", s.handleState)
		mux.HandleFunc("POST /api/consent", s.handleConsent)
		mux.HandleFunc("POST /api/source", s.handleSource)
		mux.HandleFunc("POST /api/target", s.handleTarget)
		mux.HandleFunc("POST /api/navigate", s.handleNavigate)
		mux.HandleFunc("POST /api/reset", s.handleReset)
		if s.cfg.Picker != nil {
			mux.HandleFunc("POST /api/pick", s.handlePick)
		}
	}

	mux.HandleFunc("POST /api/swap", s.handleSwap)
	mux.HandleFunc("GET /api/history", s.handleHistoryList)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistoryGet)
	mux.HandleFunc("GET /api/history/{id}/image", s.handleHistoryImage)
	mux.HandleFunc("GET /api/history/{id}/thumbnail", s.handleHistoryThumbnail)
}

// Handler returns the API routes on their own mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"model":    s.cfg.Model,
		"workflow": s.cfg.Machine != nil,
		"picker":   s.cfg.Machine != nil && s.cfg.Picker != nil,
	})
}
