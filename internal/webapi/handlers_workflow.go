package webapi

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fpang/kimixchange/internal/media"
	"github.com/fpang/kimixchange/internal/workflow"
	"github.com/rs/zerolog/log"
)

// GET /api/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.cfg.Machine.Snapshot())
}

type consentRequest struct {
	Checked *bool `json:"checked"`
	Accept  bool  `json:"accept"`
}

// POST /api/consent {"checked": true, "accept": true}
func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m := s.cfg.Machine
	if req.Checked != nil {
		if err := m.SetConsentChecked(*req.Checked); err != nil {
			s.respondWorkflowError(w, err)
			return
		}
	}
	if req.Accept {
		if err := m.AcceptConsent(); err != nil {
			s.respondWorkflowError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, m.Snapshot())
}

// POST /api/source (multipart "file")
func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	file, name, ok := formFile(w, r, "file")
	if !ok {
		return
	}
	defer file.Close()

	if err := s.cfg.Machine.SubmitSource(file, name); err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.cfg.Machine.Snapshot())
}

// POST /api/target (multipart "file"). The swap runs in the background;
// poll /api/state for the outcome.
func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	file, name, ok := formFile(w, r, "file")
	if !ok {
		return
	}
	defer file.Close()

	if err := s.cfg.Machine.SubmitTarget(r.Context(), file, name); err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, s.cfg.Machine.Snapshot())
}

type navigateRequest struct {
	State string `json:"state"`
}

// POST /api/navigate {"state": "RESULT"}
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := workflow.ParseState(req.State)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.cfg.Machine.Navigate(st); err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.cfg.Machine.Snapshot())
}

// POST /api/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.cfg.Machine.Reset()
	respondJSON(w, http.StatusOK, s.cfg.Machine.Snapshot())
}

type pickRequest struct {
	Role string `json:"role"` // "source" or "target"
}

// POST /api/pick {"role": "source"} opens a native file dialog on the
// machine running the server and submits the chosen file.
func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var title string
	switch req.Role {
	case "source":
		title = "Select the source face"
	case "target":
		title = "Select the target scene"
	default:
		httpError(w, http.StatusBadRequest, "role must be source or target")
		return
	}

	path, err := s.cfg.Picker(title)
	if err != nil {
		if errors.Is(err, ErrPickCanceled) {
			respondJSON(w, http.StatusOK, map[string]any{"canceled": true, "state": s.cfg.Machine.Snapshot()})
			return
		}
		log.Error().Err(err).Msg("File picker failed")
		httpError(w, http.StatusInternalServerError, "file picker failed")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.respondWorkflowError(w, &media.ReadError{Name: filepath.Base(path), Err: err})
		return
	}
	defer f.Close()

	status := http.StatusOK
	if req.Role == "source" {
		err = s.cfg.Machine.SubmitSource(f, filepath.Base(path))
	} else {
		err = s.cfg.Machine.SubmitTarget(r.Context(), f, filepath.Base(path))
		status = http.StatusAccepted
	}
	if err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	respondJSON(w, status, map[string]any{"canceled": false, "state": s.cfg.Machine.Snapshot()})
}

func (s *Server) respondWorkflowError(w http.ResponseWriter, err error) {
	var readErr *media.ReadError
	switch {
	case errors.As(err, &readErr):
		log.Warn().Err(err).Msg("Could not read uploaded file")
		httpError(w, http.StatusBadRequest, "could not read the selected file")
	case errors.Is(err, workflow.ErrConsentRequired), errors.Is(err, workflow.ErrInvalidNavigation):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrEventIgnored), errors.Is(err, workflow.ErrSwapInFlight):
		httpError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("Workflow request failed")
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}
