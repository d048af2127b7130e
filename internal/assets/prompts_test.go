package assets

import (
	"strings"
	"testing"
)

func TestRenderFaceSwapPrompt_EnhanceClause(t *testing.T) {
	const clause = "5. Apply facial enhancement (GFPGAN-style) to sharpen the final result."

	with := RenderFaceSwapPrompt(FaceSwapData{Enhance: true})
	if !strings.Contains(with, clause) {
		t.Errorf("enhanced prompt missing clause 5:\n%s", with)
	}

	without := RenderFaceSwapPrompt(FaceSwapData{Enhance: false})
	if strings.Contains(without, "GFPGAN") {
		t.Errorf("plain prompt should not mention enhancement:\n%s", without)
	}

	for _, p := range []string{with, without} {
		if !strings.HasPrefix(p, "Task: High-fidelity face swap.") {
			t.Errorf("prompt has unexpected prefix: %q", p[:40])
		}
		if !strings.Contains(p, "4. Preserve facial expressions and orientation from the target.\n\nFinal output must be only the result image.") &&
			!strings.Contains(p, clause+"\n\nFinal output must be only the result image.") {
			t.Errorf("prompt layout unexpected:\n%s", p)
		}
	}
}

func TestValidationPrompt(t *testing.T) {
	if ValidationPrompt != "hi" {
		t.Errorf("ValidationPrompt = %q, want %q", ValidationPrompt, "hi")
	}
}
