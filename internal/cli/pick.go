package cli

import (
	"errors"

	"github.com/ncruces/zenity"
)

// ErrPickCanceled is returned when the user closes the file dialog.
var ErrPickCanceled = errors.New("file selection canceled")

// imageFilters restricts the native dialog to image files. The filter is a
// hint only; any file may still be chosen.
var imageFilters = zenity.FileFilters{
	{
		Name:     "Images",
		Patterns: []string{"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp", "*.bmp", "*.tif", "*.tiff", "*.heic", "*.heif"},
	},
}

// PickImage opens a native file dialog and returns the selected path.
func PickImage(title string) (string, error) {
	path, err := zenity.SelectFile(zenity.Title(title), imageFilters)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", ErrPickCanceled
	}
	return path, err
}
