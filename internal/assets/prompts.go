// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

// ValidationPrompt is the minimal request used to check that an API key works.
//
//go:embed prompts/validate.txt
var ValidationPrompt string

//go:embed prompts/face-swap.txt
var faceSwapTemplate string

// template.Must panics on malformed templates, so a bad edit fails at startup.
var faceSwapPromptTmpl = template.Must(template.New("face-swap").Parse(faceSwapTemplate))

// FaceSwapData holds the dynamic data injected into the face swap instruction.
type FaceSwapData struct {
	// Enhance adds the facial enhancement requirement.
	Enhance bool
}

// RenderFaceSwapPrompt renders the face swap instruction. The text is fixed
// except for the enhancement clause.
func RenderFaceSwapPrompt(data FaceSwapData) string {
	var buf bytes.Buffer
	// Execution cannot fail for a bool field; whatever rendered is returned.
	_ = faceSwapPromptTmpl.Execute(&buf, data)
	return buf.String()
}

func init() {
	ValidationPrompt = strings.TrimSpace(ValidationPrompt)
}
