package webapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/media"
	"github.com/fpang/kimixchange/internal/swap"
	"github.com/rs/zerolog/log"
)

type swapResponse struct {
	ID        string `json:"id"`
	ResultURL string `json:"resultUrl"`
	Timestamp int64  `json:"timestamp"`
	// HistorySaved is false when the swap worked but persisting failed.
	HistorySaved bool `json:"historySaved"`
}

// POST /api/swap (multipart "source", "target"; optional "enhance", "quality",
// "blendStrength"). Runs one swap synchronously without touching the workflow.
func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		httpError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	cfg, err := s.swapConfigFromForm(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	source, ok := ingestField(w, r, "source")
	if !ok {
		return
	}
	target, ok := ingestField(w, r, "target")
	if !ok {
		return
	}

	result, err := s.cfg.Swapper.Swap(r.Context(), source.Data, target.Data, cfg)
	if err != nil {
		// The message is shown to the user as-is.
		var genErr *swap.GenerationError
		status := http.StatusBadGateway
		if errors.As(err, &genErr) && genErr.Err != nil {
			status = http.StatusUnprocessableEntity
		}
		httpError(w, status, err.Error())
		return
	}

	rec := history.NewRecord(source.Data, target.Data, result, time.Now())
	// A client hanging up after the swap must not lose the record.
	_, err = s.cfg.Store.Append(context.WithoutCancel(r.Context()), rec)
	if err != nil {
		log.Error().Err(err).Str("id", rec.ID).Msg("Swap succeeded but history could not be saved")
	}
	respondJSON(w, http.StatusOK, swapResponse{
		ID:           rec.ID,
		ResultURL:    result,
		Timestamp:    rec.Timestamp,
		HistorySaved: err == nil,
	})
}

func (s *Server) swapConfigFromForm(r *http.Request) (swap.Config, error) {
	cfg := s.cfg.SwapConfig
	if v := r.FormValue("quality"); v != "" {
		q, err := swap.ParseQuality(v)
		if err != nil {
			return cfg, err
		}
		cfg.Quality = q
	}
	if v := r.FormValue("enhance"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("enhance must be true or false")
		}
		cfg.Enhance = b
	}
	if v := r.FormValue("blendStrength"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, errors.New("blendStrength must be a number")
		}
		cfg.BlendStrength = f
	}
	return cfg, cfg.Validate()
}

func ingestField(w http.ResponseWriter, r *http.Request, field string) (*media.ImageHandle, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		httpError(w, http.StatusBadRequest, "missing multipart field "+field)
		return nil, false
	}
	defer file.Close()

	h, err := media.Ingest(file, header.Filename)
	if err != nil {
		log.Warn().Err(err).Str("field", field).Msg("Could not read uploaded file")
		httpError(w, http.StatusBadRequest, "could not read the selected file")
		return nil, false
	}
	return h, true
}
