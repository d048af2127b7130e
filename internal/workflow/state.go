package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fpang/kimixchange/internal/media"
)

// State is one screen of the swap workflow.
type State string

const (
	StateConsent      State = "CONSENT"
	StateUploadSource State = "UPLOAD_SOURCE"
	StateUploadTarget State = "UPLOAD_TARGET"
	StateProcessing   State = "PROCESSING"
	StateResult       State = "RESULT"
)

var allStates = []State{StateConsent, StateUploadSource, StateUploadTarget, StateProcessing, StateResult}

// ParseState accepts a state name in any case.
func ParseState(s string) (State, error) {
	want := State(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range allStates {
		if st == want {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown workflow state %q", s)
}

var (
	// ErrEventIgnored is returned when an event does not apply to the current state.
	// The machine is left unchanged.
	ErrEventIgnored = errors.New("event not valid in current state")
	// ErrSwapInFlight is returned when a target arrives while a swap is running.
	ErrSwapInFlight = errors.New("a swap is already in progress")
	// ErrInvalidNavigation is returned for states the sidebar cannot jump to.
	ErrInvalidNavigation = errors.New("state is not a navigation target")
	// ErrConsentRequired is returned when consent is accepted without the checkbox.
	ErrConsentRequired = errors.New("consent checkbox must be checked first")
)

// Attempt is the transient record of one upload, process, result journey.
type Attempt struct {
	Source       *media.ImageHandle `json:"source,omitempty"`
	Target       *media.ImageHandle `json:"target,omitempty"`
	Result       string             `json:"result,omitempty"`
	ErrorMessage string             `json:"error,omitempty"`
}

// Snapshot is a point-in-time copy of the machine.
type Snapshot struct {
	State          State   `json:"state"`
	ConsentChecked bool    `json:"consentChecked"`
	Attempt        Attempt `json:"attempt"`
	// Status is the cosmetic progress line shown while processing.
	Status string `json:"status,omitempty"`
	// Busy reports a swap request in flight.
	Busy bool `json:"busy"`
}
