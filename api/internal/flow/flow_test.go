package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/history"
)

const leafURI = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="

const leafSpotRaw = "```json\n" + `{
  "isHealthy": false,
  "issueName": "Leaf Spot",
  "issueType": "Fungal",
  "confidence": 0.87,
  "description": "Brown spots with yellow halos.",
  "treatment": ["Remove infected leaves"],
  "prevention": ["Water at the base"],
  "diyTip": "Dust with wood ash."
}` + "\n```"

type fakeDiagnoser struct {
	raw     string
	err     error
	release chan struct{}
	calls   chan diagnose.Request
}

func (f *fakeDiagnoser) Diagnose(ctx context.Context, req diagnose.Request) (string, error) {
	if f.calls != nil {
		f.calls <- req
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.raw, f.err
}

func next(t *testing.T, updates <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-updates:
		require.True(t, ok, "updates closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func start(t *testing.T, m *Machine) (chan<- Event, <-chan Update) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	events := make(chan Event)
	return events, m.Run(ctx, events)
}

func TestLeafSpotEndToEnd(t *testing.T) {
	store := history.New(history.NewMemoryRepo())
	m := New(&fakeDiagnoser{raw: leafSpotRaw}, WithHistory(store, "web-1"), WithLanguage("en"))
	events, updates := start(t, m)

	events <- ImageSelected{DataURI: leafURI}
	u := next(t, updates)
	assert.Equal(t, StateImageSelected, u.State)
	assert.Equal(t, leafURI, u.Image)

	events <- Submit{}
	assert.Equal(t, StateSubmitting, next(t, updates).State)

	u = next(t, updates)
	require.NoError(t, u.Err)
	assert.Equal(t, StateResultReady, u.State)
	require.NotNil(t, u.Result)
	assert.Equal(t, "Leaf Spot", u.Result.IssueName)
	assert.InDelta(t, 0.87, u.Result.Confidence, 1e-9)
	assert.InDelta(t, 87.0, u.Result.ConfidencePercent(), 1e-9)
	require.NotNil(t, u.Entry)
	assert.Equal(t, "Leaf Spot", u.Entry.IssueName)
	require.NotEmpty(t, u.History)
	assert.Equal(t, "Leaf Spot", u.History[0].IssueName)
	assert.Equal(t, leafURI, u.History[0].Image)

	events <- Reset{}
	u = next(t, updates)
	assert.Equal(t, StateIdle, u.State)
	assert.Empty(t, u.Image)
}

func TestSubmitWithoutImage(t *testing.T) {
	events, updates := start(t, New(&fakeDiagnoser{}))
	events <- Submit{}
	u := next(t, updates)
	assert.ErrorIs(t, u.Err, ErrNoImage)
	assert.Equal(t, StateIdle, u.State)
}

func TestInvalidImageRejected(t *testing.T) {
	events, updates := start(t, New(&fakeDiagnoser{}))
	events <- ImageSelected{DataURI: "data:text/plain;base64,aGk="}
	u := next(t, updates)
	assert.ErrorIs(t, u.Err, ErrInvalidImage)
	assert.Equal(t, StateIdle, u.State)
}

func TestSubmitWhileSubmittingIsBusy(t *testing.T) {
	d := &fakeDiagnoser{raw: leafSpotRaw, release: make(chan struct{}), calls: make(chan diagnose.Request, 2)}
	m := New(d)
	events, updates := start(t, m)

	events <- ImageSelected{DataURI: leafURI}
	next(t, updates)
	events <- Submit{}
	assert.Equal(t, StateSubmitting, next(t, updates).State)
	<-d.calls

	events <- Submit{}
	u := next(t, updates)
	assert.ErrorIs(t, u.Err, ErrBusy)
	assert.Equal(t, StateSubmitting, u.State)

	events <- ImageSelected{DataURI: leafURI}
	assert.ErrorIs(t, next(t, updates).Err, ErrBusy)

	close(d.release)
	assert.Equal(t, StateResultReady, next(t, updates).State)
	assert.Len(t, d.calls, 0, "exactly one upstream call")
}

func TestFailureThenNewImage(t *testing.T) {
	relayErr := &diagnose.Error{Kind: diagnose.KindUpstreamTimeout, Message: "The AI service did not respond in time."}
	store := history.New(history.NewMemoryRepo())
	m := New(&fakeDiagnoser{err: relayErr}, WithHistory(store, "c"))
	events, updates := start(t, m)

	events <- ImageSelected{DataURI: leafURI}
	next(t, updates)
	events <- Submit{}
	next(t, updates)

	u := next(t, updates)
	assert.Equal(t, StateFailed, u.State)
	assert.Equal(t, diagnose.KindUpstreamTimeout, diagnose.KindOf(u.Err))
	list, err := store.List(context.Background(), "c")
	require.NoError(t, err)
	assert.Empty(t, list)

	events <- ImageSelected{DataURI: leafURI}
	assert.Equal(t, StateImageSelected, next(t, updates).State)
}

func TestUnparsableResultFallsBack(t *testing.T) {
	store := history.New(history.NewMemoryRepo())
	m := New(&fakeDiagnoser{raw: "I cannot see a plant here."}, WithHistory(store, "c"))
	events, updates := start(t, m)

	events <- ImageSelected{DataURI: leafURI}
	next(t, updates)
	events <- Submit{}
	next(t, updates)

	u := next(t, updates)
	assert.Equal(t, StateResultReady, u.State)
	assert.Equal(t, diagnose.Fallback(), *u.Result)
	assert.Equal(t, history.HealthyLabel, u.Entry.IssueName)
}

func TestResetDropsPendingResult(t *testing.T) {
	d := &fakeDiagnoser{raw: leafSpotRaw, release: make(chan struct{}), calls: make(chan diagnose.Request, 1)}
	m := New(d)
	events, updates := start(t, m)

	events <- ImageSelected{DataURI: leafURI}
	next(t, updates)
	events <- Submit{}
	next(t, updates)
	<-d.calls

	events <- Reset{}
	assert.Equal(t, StateIdle, next(t, updates).State)

	select {
	case u := <-updates:
		t.Fatalf("unexpected update after reset: %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, StateIdle, m.State())
}

func TestRunStopsWhenEventsClosed(t *testing.T) {
	events := make(chan Event)
	updates := New(&fakeDiagnoser{}).Run(context.Background(), events)
	close(events)

	select {
	case _, ok := <-updates:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "result_ready", StateResultReady.String())
	assert.Equal(t, "state(9)", State(9).String())
}
