package workflow

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/media"
	"github.com/fpang/kimixchange/internal/swap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type swapCall struct {
	source, target string
	cfg            swap.Config
}

type fakeSwapper struct {
	mu     sync.Mutex
	calls  []swapCall
	result string
	err    error
	// block, when set, holds Swap until closed or ctx is cancelled.
	block chan struct{}
}

func (f *fakeSwapper) Swap(ctx context.Context, source, target string, cfg swap.Config) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, swapCall{source, target, cfg})
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeSwapper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type failingHistory struct{}

func (failingHistory) Append(context.Context, history.Record) ([]history.Record, error) {
	return nil, errors.New("quota exceeded")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("unreadable") }

func newTestMachine(sw Swapper, hist HistoryAppender, opts ...Option) *Machine {
	fixed := time.UnixMilli(1_700_000_000_000)
	opts = append([]Option{WithStatusDelay(0), WithClock(func() time.Time { return fixed })}, opts...)
	return New(sw, hist, opts...)
}

func file(content string) *strings.Reader {
	return strings.NewReader(content)
}

// toTarget drives a fresh machine to UPLOAD_TARGET.
func toTarget(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.SetConsentChecked(true))
	require.NoError(t, m.AcceptConsent())
	require.NoError(t, m.SubmitSource(file("face A"), "a.png"))
	require.Equal(t, StateUploadTarget, m.State())
}

func TestNew_StartsInConsent(t *testing.T) {
	m := newTestMachine(&fakeSwapper{}, nil)
	snap := m.Snapshot()
	assert.Equal(t, StateConsent, snap.State)
	assert.False(t, snap.ConsentChecked)
	assert.Equal(t, Attempt{}, snap.Attempt)
}

func TestConsent_OnlyAcceptedConsentLeaves(t *testing.T) {
	m := newTestMachine(&fakeSwapper{}, nil)

	assert.ErrorIs(t, m.AcceptConsent(), ErrConsentRequired)
	assert.ErrorIs(t, m.SubmitSource(file("x"), "x.png"), ErrEventIgnored)
	assert.ErrorIs(t, m.SubmitTarget(context.Background(), file("x"), "x.png"), ErrEventIgnored)
	assert.Equal(t, StateConsent, m.State())

	require.NoError(t, m.SetConsentChecked(true))
	require.NoError(t, m.SetConsentChecked(false))
	assert.ErrorIs(t, m.AcceptConsent(), ErrConsentRequired)
	assert.Equal(t, StateConsent, m.State())

	require.NoError(t, m.SetConsentChecked(true))
	require.NoError(t, m.AcceptConsent())
	assert.Equal(t, StateUploadSource, m.State())

	assert.ErrorIs(t, m.SetConsentChecked(false), ErrEventIgnored)
	assert.ErrorIs(t, m.AcceptConsent(), ErrEventIgnored)
}

func TestSuccessfulSwap_RecordsHistoryAndShowsResult(t *testing.T) {
	ctx := context.Background()
	sw := &fakeSwapper{result: "data:image/png;base64,UkVTVUxU"}
	store := history.NewStore(history.NewMemoryBackend())
	m := newTestMachine(sw, store)

	toTarget(t, m)
	h1 := m.Snapshot().Attempt.Source
	require.NoError(t, m.SubmitTarget(ctx, file("scene B"), "b.png"))
	m.Wait()

	snap := m.Snapshot()
	h2 := snap.Attempt.Target
	assert.Equal(t, StateResult, snap.State)
	assert.Equal(t, sw.result, snap.Attempt.Result)
	assert.Empty(t, snap.Attempt.ErrorMessage)
	assert.False(t, snap.Busy)

	require.Equal(t, 1, sw.callCount())
	assert.Equal(t, swapCall{h1.Data, h2.Data, swap.Config{Quality: swap.QualityHigh, Enhance: true, BlendStrength: 0.8}}, sw.calls[0])

	records := store.Load(ctx)
	require.Len(t, records, 1)
	assert.Equal(t, h1.Data, records[0].SourceURL)
	assert.Equal(t, h2.Data, records[0].TargetURL)
	assert.Equal(t, sw.result, records[0].ResultURL)
	assert.Equal(t, int64(1_700_000_000_000), records[0].Timestamp)
}

func TestFailedSwap_ReturnsToSourceWithoutHistory(t *testing.T) {
	ctx := context.Background()
	sw := &fakeSwapper{err: &swap.GenerationError{Message: swap.NoResultMessage}}
	store := history.NewStore(history.NewMemoryBackend())
	m := newTestMachine(sw, store)

	toTarget(t, m)
	require.NoError(t, m.SubmitTarget(ctx, file("scene B"), "b.png"))
	m.Wait()

	snap := m.Snapshot()
	assert.Equal(t, StateUploadSource, snap.State)
	assert.Equal(t, "no result produced", snap.Attempt.ErrorMessage)
	assert.Empty(t, snap.Attempt.Result)
	assert.Empty(t, store.Load(ctx))
}

func TestFailedSwap_TransportMessageVerbatim(t *testing.T) {
	sw := &fakeSwapper{err: &swap.TransportError{Err: errors.New("503 Service Unavailable")}}
	m := newTestMachine(sw, nil)

	toTarget(t, m)
	require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))
	m.Wait()
	assert.Equal(t, "503 Service Unavailable", m.Snapshot().Attempt.ErrorMessage)
}

func TestFailedSwap_EmptyMessageFallsBack(t *testing.T) {
	m := newTestMachine(&fakeSwapper{err: errors.New("")}, nil)
	toTarget(t, m)
	require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))
	m.Wait()
	assert.Equal(t, FallbackErrorMessage, m.Snapshot().Attempt.ErrorMessage)
}

// Known quirk: a failed swap keeps the old handles. A new source selection
// coexists with the stale target until an explicit reset.
func TestFailedSwap_StaleHandlesRetained(t *testing.T) {
	sw := &fakeSwapper{err: errors.New("boom")}
	m := newTestMachine(sw, nil)

	toTarget(t, m)
	require.NoError(t, m.SubmitTarget(context.Background(), file("old target"), "old.png"))
	m.Wait()

	failed := m.Snapshot().Attempt
	require.NotNil(t, failed.Source)
	require.NotNil(t, failed.Target)

	require.NoError(t, m.SubmitSource(file("new face"), "new.png"))
	snap := m.Snapshot()
	assert.Equal(t, StateUploadTarget, snap.State)
	assert.NotEqual(t, failed.Source.ID, snap.Attempt.Source.ID)
	assert.Equal(t, failed.Target.ID, snap.Attempt.Target.ID, "stale target survives")
	assert.Equal(t, "boom", snap.Attempt.ErrorMessage)

	m.Reset()
	assert.Nil(t, m.Snapshot().Attempt.Target)
}

// Navigating away during PROCESSING does not cancel the swap, so a new
// source submitted meanwhile ends up beside a result made from the old pair.
// The history record keeps the pair that was actually sent.
func TestNavigateDuringProcessing_OldSwapLandsOnNewSource(t *testing.T) {
	sw := &fakeSwapper{result: "data:image/png;base64,AA==", block: make(chan struct{})}
	store := history.NewStore(history.NewMemoryBackend())
	m := newTestMachine(sw, store)

	toTarget(t, m)
	oldSource := m.Snapshot().Attempt.Source
	require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))
	require.Eventually(t, func() bool { return sw.callCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Navigate(StateUploadSource))
	require.NoError(t, m.SubmitSource(file("face C"), "c.png"))
	newSource := m.Snapshot().Attempt.Source
	require.Equal(t, StateUploadTarget, m.State())

	close(sw.block)
	m.Wait()

	snap := m.Snapshot()
	assert.Equal(t, StateResult, snap.State)
	assert.Equal(t, newSource.ID, snap.Attempt.Source.ID)
	assert.Equal(t, "data:image/png;base64,AA==", snap.Attempt.Result)
	assert.Equal(t, 1, sw.callCount())

	records := store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, oldSource.Data, records[0].SourceURL)
	assert.NotEqual(t, newSource.Data, records[0].SourceURL)
}

func TestHistoryFailure_StillShowsResult(t *testing.T) {
	m := newTestMachine(&fakeSwapper{result: "data:image/png;base64,AA=="}, failingHistory{})
	toTarget(t, m)
	require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))
	m.Wait()

	snap := m.Snapshot()
	assert.Equal(t, StateResult, snap.State)
	assert.Equal(t, "data:image/png;base64,AA==", snap.Attempt.Result)
}

func TestReset_FromEveryState(t *testing.T) {
	for _, start := range allStates {
		t.Run(string(start), func(t *testing.T) {
			sw := &fakeSwapper{result: "data:image/png;base64,AA==", block: make(chan struct{})}
			m := newTestMachine(sw, nil)
			switch start {
			case StateUploadSource:
				require.NoError(t, m.SetConsentChecked(true))
				require.NoError(t, m.AcceptConsent())
			case StateUploadTarget:
				toTarget(t, m)
			case StateProcessing:
				toTarget(t, m)
				require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))
			case StateResult:
				toTarget(t, m)
				close(sw.block)
				require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))
				m.Wait()
			}
			require.Equal(t, start, m.State())

			m.Reset()
			m.Wait()

			snap := m.Snapshot()
			assert.Equal(t, StateUploadSource, snap.State)
			assert.Equal(t, Attempt{}, snap.Attempt)
			assert.Empty(t, snap.Status)
		})
	}
}

func TestReset_DiscardsInFlightCompletion(t *testing.T) {
	sw := &fakeSwapper{result: "data:image/png;base64,AA==", block: make(chan struct{})}
	store := history.NewStore(history.NewMemoryBackend())
	m := newTestMachine(sw, store)

	toTarget(t, m)
	require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))
	assert.True(t, m.Snapshot().Busy)

	m.Reset()
	m.Wait()

	snap := m.Snapshot()
	assert.Equal(t, StateUploadSource, snap.State)
	assert.Empty(t, snap.Attempt.Result)
	assert.Empty(t, snap.Attempt.ErrorMessage)
	assert.False(t, snap.Busy)
	assert.Empty(t, store.Load(context.Background()))
}

func TestSubmitTarget_OneSwapInFlight(t *testing.T) {
	sw := &fakeSwapper{result: "data:image/png;base64,AA==", block: make(chan struct{})}
	m := newTestMachine(sw, nil)

	toTarget(t, m)
	require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))

	// The sidebar can bring the user back to the upload screens mid-swap.
	require.NoError(t, m.Navigate(StateUploadSource))
	require.NoError(t, m.SubmitSource(file("c"), "c.png"))
	assert.ErrorIs(t, m.SubmitTarget(context.Background(), file("d"), "d.png"), ErrSwapInFlight)

	close(sw.block)
	m.Wait()
	assert.Equal(t, 1, sw.callCount())
	assert.Equal(t, StateResult, m.State())
}

func TestSubmitTarget_OutlivesRequestContext(t *testing.T) {
	sw := &fakeSwapper{result: "data:image/png;base64,AA==", block: make(chan struct{})}
	m := newTestMachine(sw, nil)
	toTarget(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.SubmitTarget(ctx, file("b"), "b.png"))
	cancel()
	close(sw.block)
	m.Wait()
	assert.Equal(t, StateResult, m.State())
}

func TestReadError_LeavesAttemptUnchanged(t *testing.T) {
	m := newTestMachine(&fakeSwapper{}, nil)
	require.NoError(t, m.SetConsentChecked(true))
	require.NoError(t, m.AcceptConsent())

	err := m.SubmitSource(failingReader{}, "bad.png")
	var readErr *media.ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, StateUploadSource, m.State())
	assert.Nil(t, m.Snapshot().Attempt.Source)

	require.NoError(t, m.SubmitSource(file("a"), "a.png"))
	before := m.Snapshot()
	err = m.SubmitTarget(context.Background(), failingReader{}, "bad.png")
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, before, m.Snapshot())
}

func TestNavigate(t *testing.T) {
	sw := &fakeSwapper{result: "data:image/png;base64,AA=="}
	m := newTestMachine(sw, nil)

	// Direct navigation works from CONSENT, bypassing the checkbox.
	require.NoError(t, m.Navigate(StateResult))
	assert.Equal(t, StateResult, m.State())
	require.NoError(t, m.Navigate(StateUploadSource))
	assert.Equal(t, StateUploadSource, m.State())

	assert.ErrorIs(t, m.Navigate(StateUploadTarget), ErrInvalidNavigation)
	assert.ErrorIs(t, m.Navigate(StateProcessing), ErrInvalidNavigation)
	assert.ErrorIs(t, m.Navigate("BOGUS"), ErrInvalidNavigation)
	assert.Equal(t, StateUploadSource, m.State())

	require.NoError(t, m.SubmitSource(file("a"), "a.png"))
	require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))
	m.Wait()
	require.Equal(t, StateResult, m.State())

	// History and home keep the attempt.
	require.NoError(t, m.Navigate(StateUploadSource))
	assert.NotEmpty(t, m.Snapshot().Attempt.Result)

	// Consent destroys it and unticks the box.
	require.NoError(t, m.Navigate(StateConsent))
	snap := m.Snapshot()
	assert.Equal(t, StateConsent, snap.State)
	assert.Equal(t, Attempt{}, snap.Attempt)
	assert.False(t, snap.ConsentChecked)
}

func TestNavigateToConsent_CancelsSwap(t *testing.T) {
	sw := &fakeSwapper{result: "data:image/png;base64,AA==", block: make(chan struct{})}
	store := history.NewStore(history.NewMemoryBackend())
	m := newTestMachine(sw, store)
	toTarget(t, m)
	require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))

	require.NoError(t, m.Navigate(StateConsent))
	m.Wait()

	assert.Equal(t, StateConsent, m.State())
	assert.Empty(t, store.Load(context.Background()))
}

func TestProgressMessages(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	m := newTestMachine(&fakeSwapper{result: "data:image/png;base64,AA=="}, nil,
		WithStatusDelay(time.Millisecond),
		WithProgress(func(s string) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		}))

	toTarget(t, m)
	require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))
	m.Wait()

	assert.Equal(t, []string{"Booting Neural Pipeline...", "Extracting Embeddings...", "Applying Blending..."}, seen)
	assert.Empty(t, m.Snapshot().Status)
}

func TestSwapConfigIsPassedThrough(t *testing.T) {
	sw := &fakeSwapper{result: "data:image/png;base64,AA=="}
	cfg := swap.Config{Quality: swap.QualityLow, Enhance: false, BlendStrength: 0.3}
	m := newTestMachine(sw, nil, WithSwapConfig(cfg))
	toTarget(t, m)
	require.NoError(t, m.SubmitTarget(context.Background(), file("b"), "b.png"))
	m.Wait()
	assert.Equal(t, cfg, sw.calls[0].cfg)
}

func TestSubmit_WrongState(t *testing.T) {
	m := newTestMachine(&fakeSwapper{}, nil)
	require.NoError(t, m.Navigate(StateResult))
	assert.ErrorIs(t, m.SubmitSource(bytes.NewReader(nil), "x"), ErrEventIgnored)
	assert.ErrorIs(t, m.SubmitTarget(context.Background(), bytes.NewReader(nil), "x"), ErrEventIgnored)
}

func TestParseState(t *testing.T) {
	for _, st := range allStates {
		got, err := ParseState(strings.ToLower(string(st)))
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	_, err := ParseState("DONE")
	assert.Error(t, err)
}
