package history

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fpang/kimixchange/internal/media"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const zipMethodZstd uint16 = 93

// exportEntry is one line of index.json inside an export archive.
type exportEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Result    string    `json:"result"`
}

var extensionsByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// ExtensionFor returns the file extension for an image MIME type, or ".bin".
func ExtensionFor(mimeType string) string {
	if ext, ok := extensionsByMIME[mimeType]; ok {
		return ext
	}
	return ".bin"
}

// Export writes records as a zstd-compressed ZIP: one directory per record
// holding the decoded source, target and result images, plus index.json.
func Export(w io.Writer, records []Record) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zipMethodZstd, func(out io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})

	index := make([]exportEntry, 0, len(records))
	for _, rec := range records {
		entry := exportEntry{ID: rec.ID, CreatedAt: rec.CreatedAt().UTC()}
		var err error
		if entry.Source, err = writeImage(zw, rec, "source", rec.SourceURL); err != nil {
			return err
		}
		if entry.Target, err = writeImage(zw, rec, "target", rec.TargetURL); err != nil {
			return err
		}
		if entry.Result, err = writeImage(zw, rec, "result", rec.ResultURL); err != nil {
			return err
		}
		index = append(index, entry)
	}

	iw, err := zw.CreateHeader(&zip.FileHeader{Name: "index.json", Method: zip.Deflate, Modified: time.Now()})
	if err != nil {
		return fmt.Errorf("create index.json: %w", err)
	}
	enc := json.NewEncoder(iw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(index); err != nil {
		return fmt.Errorf("write index.json: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	log.Info().Int("records", len(records)).Msg("History exported")
	return nil
}

func writeImage(zw *zip.Writer, rec Record, kind, payload string) (string, error) {
	mimeType, data, err := media.DecodeDataURL(payload)
	if err != nil {
		return "", fmt.Errorf("record %s %s: %w", rec.ID, kind, err)
	}
	name := rec.ID + "/" + kind + ExtensionFor(mimeType)

	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zipMethodZstd,
		Modified: rec.CreatedAt(),
	})
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}
