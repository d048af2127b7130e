// Package media turns user-selected image files into embeddable handles and
// renders previews of stored payloads.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder for image.DecodeConfig
	_ "image/jpeg" // register JPEG decoder for image.DecodeConfig
	_ "image/png"  // register PNG decoder for image.DecodeConfig
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// AdvisoryMaxSize is the size shown to users as the upload limit.
// It is advisory only; Ingest never rejects a file for its size.
const AdvisoryMaxSize int64 = 20 * 1024 * 1024

// extensionMIMETypes is the fallback when content sniffing is inconclusive.
var extensionMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
}

// ImageHandle is an immutable in-memory reference to a user-selected image.
// Data holds the full file bytes as a data URL.
type ImageHandle struct {
	ID          string         `json:"id"`
	Data        string         `json:"url"`
	DisplayName string         `json:"name"`
	MIMEType    string         `json:"mimeType"`
	Size        int64          `json:"size"`
	Width       int            `json:"width,omitempty"`
	Height      int            `json:"height,omitempty"`
	Metadata    *ImageMetadata `json:"metadata,omitempty"`
}

// ReadError reports that a selected file could not be read. No handle is produced.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %q: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Ingest reads r to completion and returns a handle whose Data embeds every byte.
// Type and size checks are advisory: unusual files are logged, not rejected.
func Ingest(r io.Reader, displayName string) (*ImageHandle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ReadError{Name: displayName, Err: err}
	}

	mimeType := detectMIMEType(data, displayName)
	h := &ImageHandle{
		ID:          uuid.NewString(),
		Data:        EncodeDataURL(mimeType, data),
		DisplayName: displayName,
		MIMEType:    mimeType,
		Size:        int64(len(data)),
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		h.Width, h.Height = cfg.Width, cfg.Height
	}
	if md, err := ExtractMetadata(bytes.NewReader(data)); err == nil {
		h.Metadata = md
	}

	evt := log.Debug()
	if !strings.HasPrefix(mimeType, "image/") || h.Size > AdvisoryMaxSize {
		evt = log.Warn()
	}
	evt.Str("id", h.ID).
		Str("name", displayName).
		Str("mime", mimeType).
		Int64("size", h.Size).
		Int("width", h.Width).
		Int("height", h.Height).
		Msg("Image ingested")

	return h, nil
}

// IngestFile opens path and ingests its contents under the file's base name.
func IngestFile(path string) (*ImageHandle, error) {
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Name: name, Err: err}
	}
	defer f.Close()
	return Ingest(f, name)
}

// detectMIMEType sniffs the content and falls back to the file extension.
func detectMIMEType(data []byte, name string) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if m, ok := extensionMIMETypes[strings.ToLower(filepath.Ext(name))]; ok {
		return m
	}
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	return sniffed
}
