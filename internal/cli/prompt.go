package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// ConsentText is the usage agreement shown before the first swap.
const ConsentText = `Ethics & Security Protocol

  1. Explicit Consent
     You must own the rights to the photos you upload. You confirm that any
     individuals in the photos have consented to this processing.

  2. Anti-Abuse Policy
     Creating non-consensual deepfakes, parody involving public figures, or
     any malicious material is strictly prohibited.

  3. Privacy & Data Deletion
     Images are sent to the Gemini API for processing. Completed swaps are
     kept in your local history (last 20) until overwritten.
`

// PromptForConsent prints ConsentText and asks for an explicit "yes".
// Anything else, including EOF, is a refusal.
func PromptForConsent(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, ConsentText)
	fmt.Fprintln(out)
	fmt.Fprint(out, "I have read and agree to the guidelines [y/N]: ")

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		log.Warn().Err(err).Msg("Failed to read consent answer")
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
