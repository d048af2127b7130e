package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNotDataURL is returned by DecodeDataURL for strings that are not base64 data URLs.
var ErrNotDataURL = errors.New("not a base64 data URL")

// EncodeDataURL renders data as a self-describing "data:<mime>;base64,<body>" payload.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a data URL into its MIME type and decoded bytes.
// Only the base64 form is accepted; the browser's FileReader never produces
// the percent-encoded form for binary files.
func DecodeDataURL(payload string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(payload, "data:")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	header, body, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL body: %w", err)
	}
	return mimeType, data, nil
}
