package swap

import "github.com/fpang/kimixchange/internal/assets"

// BuildPrompt returns the swap instruction for cfg.
func BuildPrompt(cfg Config) string {
	return assets.RenderFaceSwapPrompt(assets.FaceSwapData{Enhance: cfg.Enhance})
}
