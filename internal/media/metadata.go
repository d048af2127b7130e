package media

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
)

// ImageMetadata is the EXIF subset shown next to an uploaded photo.
// It is informational only and never sent to the generation service.
type ImageMetadata struct {
	CameraMake  string    `json:"cameraMake,omitempty"`
	CameraModel string    `json:"cameraModel,omitempty"`
	DateTaken   time.Time `json:"dateTaken,omitzero"`
}

// ExtractMetadata reads EXIF camera and capture-time fields.
// PNG screenshots and stripped files usually have none; that is an error
// callers are expected to ignore.
func ExtractMetadata(r io.ReadSeeker) (*ImageMetadata, error) {
	exifData, err := imagemeta.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	md := &ImageMetadata{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
	}

	// DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		md.DateTaken = exifData.DateTimeOriginal()
	case !exifData.CreateDate().IsZero():
		md.DateTaken = exifData.CreateDate()
	case !exifData.ModifyDate().IsZero():
		md.DateTaken = exifData.ModifyDate()
	}

	if md.CameraMake == "" && md.CameraModel == "" && md.DateTaken.IsZero() {
		return nil, fmt.Errorf("no usable EXIF fields")
	}
	return md, nil
}
