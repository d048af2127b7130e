package webapi

import (
	"errors"
	"mime/multipart"
	"net/http"
)

// formFile opens one multipart file field. On failure the response is written.
func formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile(field)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			httpError(w, http.StatusRequestEntityTooLarge, "upload too large")
		case errors.Is(err, http.ErrMissingFile):
			httpError(w, http.StatusBadRequest, "missing multipart field "+field)
		default:
			httpError(w, http.StatusBadRequest, "invalid multipart upload")
		}
		return nil, "", false
	}
	return file, header.Filename, true
}
