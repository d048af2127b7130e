package webapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/media"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const maxThumbnailSize = 1024

// historySummary is a list entry without the embedded image payloads.
type historySummary struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"sourceThumbnail"`
	Target    string `json:"targetThumbnail"`
	Result    string `json:"resultThumbnail"`
}

// GET /api/history
func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	records := s.cfg.Store.Load(r.Context())
	out := make([]historySummary, 0, len(records))
	for _, rec := range records {
		base := "/api/history/" + rec.ID + "/thumbnail?kind="
		out = append(out, historySummary{
			ID:        rec.ID,
			Timestamp: rec.Timestamp,
			Source:    base + "source",
			Target:    base + "target",
			Result:    base + "result",
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records":  out,
		"capacity": history.Capacity,
	})
}

// GET /api/history/{id}
func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// GET /api/history/{id}/image?kind=result
func (s *Server) handleHistoryImage(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	_, payload, ok := payloadFor(w, rec, r.URL.Query().Get("kind"))
	if !ok {
		return
	}
	mimeType, data, err := media.DecodeDataURL(payload)
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, "stored image is not a data URL")
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// GET /api/history/{id}/thumbnail?kind=result&size=256
func (s *Server) handleHistoryThumbnail(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	kind, payload, ok := payloadFor(w, rec, r.URL.Query().Get("kind"))
	if !ok {
		return
	}

	size := media.DefaultThumbnailMaxDimension
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxThumbnailSize {
			httpError(w, http.StatusBadRequest, fmt.Sprintf("size must be between 1 and %d", maxThumbnailSize))
			return
		}
		size = n
	}

	key := fmt.Sprintf("%s|%s|%d", rec.ID, kind, size)
	thumb, found := s.thumbs.Get(key)
	if !found {
		data, _, err := media.ThumbnailDataURL(payload, size)
		if err != nil {
			log.Warn().Err(err).Str("id", rec.ID).Str("kind", kind).Msg("Thumbnail generation failed")
			httpError(w, http.StatusUnprocessableEntity, "could not render thumbnail")
			return
		}
		s.thumbs.Set(key, data, cache.DefaultExpiration)
		thumb = data
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(thumb.([]byte))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (history.Record, bool) {
	id := r.PathValue("id")
	s.cfg.Store.Load(r.Context())
	rec, ok := s.cfg.Store.Get(id)
	if !ok {
		httpError(w, http.StatusNotFound, "history record not found")
	}
	return rec, ok
}

// payloadFor picks one of the record's images and returns the canonical
// kind alongside it; kind defaults to result.
func payloadFor(w http.ResponseWriter, rec history.Record, kind string) (string, string, bool) {
	switch kind {
	case "", "result":
		return "result", rec.ResultURL, true
	case "source":
		return kind, rec.SourceURL, true
	case "target":
		return kind, rec.TargetURL, true
	default:
		httpError(w, http.StatusBadRequest, "kind must be result, source or target")
		return "", "", false
	}
}
