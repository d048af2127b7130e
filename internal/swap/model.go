package swap

import "os"

// Gemini image model IDs.
//
// | Model Name             | API Model ID               | Use Case                       |
// |------------------------|----------------------------|--------------------------------|
// | Gemini 2.5 Flash Image | gemini-2.5-flash-image     | Fast image edit (default)      |
// | Gemini 3 Pro Image     | gemini-3-pro-image-preview | Higher fidelity, slower edits  |
const (
	ModelGemini25FlashImage = "gemini-2.5-flash-image"
	ModelGemini3ProImage    = "gemini-3-pro-image-preview"
)

// DefaultModelName is the model used for swaps unless overridden.
const DefaultModelName = ModelGemini25FlashImage

// ModelFromEnv returns KIMIXCHANGE_MODEL if set, otherwise DefaultModelName.
func ModelFromEnv() string {
	if env := os.Getenv("KIMIXCHANGE_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}
