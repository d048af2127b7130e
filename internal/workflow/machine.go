// Package workflow drives the consent, upload, processing and result screens
// of a face swap, owning the current attempt and feeding completed swaps into
// the history.
package workflow

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/media"
	"github.com/fpang/kimixchange/internal/swap"
	"github.com/rs/zerolog/log"
)

// Progress lines shown on entering PROCESSING. They describe no real work.
var statusMessages = []string{
	"Booting Neural Pipeline...",
	"Extracting Embeddings...",
	"Applying Blending...",
}

// DefaultStatusDelay separates consecutive status messages.
const DefaultStatusDelay = 800 * time.Millisecond

// FallbackErrorMessage is shown when a failed swap carries no message.
const FallbackErrorMessage = "Operation failed. Please try again."

// Swapper performs one face swap on two data URL payloads.
type Swapper interface {
	Swap(ctx context.Context, sourcePayload, targetPayload string, cfg swap.Config) (string, error)
}

// HistoryAppender receives completed swaps.
type HistoryAppender interface {
	Append(ctx context.Context, rec history.Record) ([]history.Record, error)
}

// Machine is the workflow state machine. All methods are safe for concurrent
// use; at most one swap runs at a time.
type Machine struct {
	swapper     Swapper
	history     HistoryAppender
	swapCfg     swap.Config
	statusDelay time.Duration
	progress    func(status string)
	now         func() time.Time

	mu             sync.Mutex
	state          State
	consentChecked bool
	attempt        Attempt
	status         string
	busy           bool
	// generation changes whenever the attempt is destroyed, so a swap
	// finishing afterwards can tell its attempt is gone.
	generation uint64
	cancel     context.CancelFunc

	wg sync.WaitGroup
}

// Option configures a Machine.
type Option func(*Machine)

// WithSwapConfig sets the configuration sent with every swap.
func WithSwapConfig(cfg swap.Config) Option {
	return func(m *Machine) { m.swapCfg = cfg }
}

// WithStatusDelay sets the pause between progress messages. Zero skips the pauses.
func WithStatusDelay(d time.Duration) Option {
	return func(m *Machine) { m.statusDelay = max(d, 0) }
}

// WithProgress registers a callback for each progress message.
func WithProgress(fn func(status string)) Option {
	return func(m *Machine) { m.progress = fn }
}

// WithClock replaces time.Now for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// New creates a Machine in CONSENT. hist may be nil to skip history.
func New(swapper Swapper, hist HistoryAppender, opts ...Option) *Machine {
	m := &Machine{
		swapper:     swapper,
		history:     hist,
		swapCfg:     swap.DefaultConfig(),
		statusDelay: DefaultStatusDelay,
		now:         time.Now,
		state:       StateConsent,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns a copy of the current state and attempt.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:          m.state,
		ConsentChecked: m.consentChecked,
		Attempt:        m.attempt,
		Status:         m.status,
		Busy:           m.busy,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetConsentChecked toggles the consent checkbox. Only valid in CONSENT.
func (m *Machine) SetConsentChecked(checked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConsent {
		return ErrEventIgnored
	}
	m.consentChecked = checked
	return nil
}

// AcceptConsent leaves CONSENT for UPLOAD_SOURCE with a fresh attempt.
// The checkbox must be checked.
func (m *Machine) AcceptConsent() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConsent {
		return ErrEventIgnored
	}
	if !m.consentChecked {
		return ErrConsentRequired
	}
	m.attempt = Attempt{}
	m.transitionLocked(StateUploadSource, "consent accepted")
	return nil
}

// SubmitSource ingests the source face and moves to UPLOAD_TARGET.
// A read failure leaves the machine unchanged and is returned as *media.ReadError.
func (m *Machine) SubmitSource(r io.Reader, name string) error {
	if m.State() != StateUploadSource {
		return ErrEventIgnored
	}
	h, err := media.Ingest(r, name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUploadSource {
		return ErrEventIgnored
	}
	// The target from a failed attempt is kept until an explicit reset.
	m.attempt.Source = h
	m.transitionLocked(StateUploadTarget, "source selected")
	return nil
}

// SubmitTarget ingests the target scene, enters PROCESSING and starts the
// swap in the background. Use Snapshot to observe the outcome or Wait to
// block until it lands. The swap outlives ctx's cancellation but keeps its values.
func (m *Machine) SubmitTarget(ctx context.Context, r io.Reader, name string) error {
	m.mu.Lock()
	if m.state != StateUploadTarget || m.attempt.Source == nil {
		m.mu.Unlock()
		return ErrEventIgnored
	}
	if m.busy {
		m.mu.Unlock()
		return ErrSwapInFlight
	}
	m.mu.Unlock()

	h, err := media.Ingest(r, name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUploadTarget || m.attempt.Source == nil {
		return ErrEventIgnored
	}
	if m.busy {
		return ErrSwapInFlight
	}

	m.attempt.Target = h
	m.attempt.ErrorMessage = ""
	m.transitionLocked(StateProcessing, "target selected")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.busy = true
	m.cancel = cancel
	gen := m.generation
	source, target := m.attempt.Source.Data, h.Data

	m.wg.Add(1)
	go m.run(runCtx, gen, source, target)
	return nil
}

// Wait blocks until no swap is running.
func (m *Machine) Wait() {
	m.wg.Wait()
}

// Navigate jumps directly to CONSENT, UPLOAD_SOURCE or RESULT regardless of
// sequence. Entering CONSENT destroys the attempt and cancels a running swap.
func (m *Machine) Navigate(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch to {
	case StateConsent:
		m.discardAttemptLocked()
		m.consentChecked = false
	case StateUploadSource, StateResult:
	default:
		return ErrInvalidNavigation
	}
	m.transitionLocked(to, "navigation")
	return nil
}

// Reset clears the attempt, cancels a running swap and returns to UPLOAD_SOURCE.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discardAttemptLocked()
	m.transitionLocked(StateUploadSource, "reset")
}

func (m *Machine) discardAttemptLocked() {
	m.generation++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.attempt = Attempt{}
	m.status = ""
}

func (m *Machine) transitionLocked(to State, reason string) {
	if m.state != to {
		log.Debug().Str("from", string(m.state)).Str("to", string(to)).Str("reason", reason).Msg("Workflow transition")
	}
	m.state = to
}

func (m *Machine) setStatus(gen uint64, status string) {
	m.mu.Lock()
	current := gen == m.generation
	if current {
		m.status = status
	}
	m.mu.Unlock()
	if current && m.progress != nil {
		m.progress(status)
	}
}

// run executes one swap and applies its outcome if the attempt still exists.
func (m *Machine) run(ctx context.Context, gen uint64, source, target string) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.busy = false
		if m.generation == gen && m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.mu.Unlock()
	}()

	result, err := m.process(ctx, gen, source, target)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		log.Info().Err(err).Msg("Attempt discarded while swapping; ignoring outcome")
		return
	}
	m.status = ""
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = FallbackErrorMessage
		}
		m.attempt.ErrorMessage = msg
		m.transitionLocked(StateUploadSource, "swap failed")
		m.mu.Unlock()
		log.Warn().Err(err).Msg("Face swap failed; returning to source upload")
		return
	}
	m.attempt.Result = result
	m.transitionLocked(StateResult, "swap succeeded")
	m.mu.Unlock()

	if m.history == nil {
		return
	}
	rec := history.NewRecord(source, target, result, m.now())
	if _, err := m.history.Append(context.WithoutCancel(ctx), rec); err != nil {
		log.Error().Err(err).Str("id", rec.ID).Msg("Swap succeeded but history could not be saved")
	}
}

func (m *Machine) process(ctx context.Context, gen uint64, source, target string) (string, error) {
	for i, status := range statusMessages {
		if i > 0 && m.statusDelay > 0 {
			t := time.NewTimer(m.statusDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		}
		m.setStatus(gen, status)
	}
	return m.swapper.Swap(ctx, source, target, m.swapCfg)
}
