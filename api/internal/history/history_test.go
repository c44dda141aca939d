package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kisan-mitra/api/internal/diagnose"
)

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func ist(t *testing.T) *time.Location {
	t.Helper()
	return time.FixedZone("IST", 5*3600+1800)
}

func result(name string) diagnose.Result {
	return diagnose.Result{IssueName: name, IssueType: "Fungal", Confidence: 0.8}
}

func TestRecordBuildsEntry(t *testing.T) {
	clock := &fixedClock{t: time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC)}
	s := New(NewMemoryRepo(), WithClock(clock.Now), WithLocation(ist(t)))

	e, err := s.Record(context.Background(), "c1", result("Leaf Spot"), "data:image/jpeg;base64,AA==")
	require.NoError(t, err)
	assert.Equal(t, clock.t.UnixMilli(), e.ID)
	assert.Equal(t, "Leaf Spot", e.IssueName)
	// 20:00 UTC is already the next day in India.
	assert.Equal(t, "10/3/2024", e.Date)
	assert.Equal(t, "data:image/jpeg;base64,AA==", e.Image)

	healthy, err := s.Record(context.Background(), "c1", diagnose.Result{IssueName: "None", IsHealthy: true}, "img")
	require.NoError(t, err)
	assert.Equal(t, HealthyLabel, healthy.IssueName)
}

func TestRecordDateIsNotZeroPadded(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
	s := New(NewMemoryRepo(), WithClock(clock.Now), WithLocation(ist(t)))

	e, err := s.Record(context.Background(), "", result("Rust"), "img")
	require.NoError(t, err)
	assert.Equal(t, "5/1/2026", e.Date)
}

func TestRecordOrderAndCap(t *testing.T) {
	clock := &fixedClock{t: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	s := New(NewMemoryRepo(), WithClock(clock.Now))
	ctx := context.Background()

	for _, n := range []string{"A", "B", "C"} {
		_, err := s.Record(ctx, "c1", result(n), "img-"+n)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	list, err := s.List(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, names(list))

	for _, n := range []string{"D", "E", "F"} {
		_, err := s.Record(ctx, "c1", result(n), "img-"+n)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	list, err = s.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, DefaultLimit)
	assert.Equal(t, []string{"F", "E", "D", "C", "B"}, names(list))
}

func TestRecordIDsStrictlyIncrease(t *testing.T) {
	clock := &fixedClock{t: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	s := New(NewMemoryRepo(), WithClock(clock.Now))

	var ids []int64
	for i := 0; i < 4; i++ {
		e, err := s.Record(context.Background(), "", result("X"), "img")
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
}

func TestClientsAreIsolated(t *testing.T) {
	s := New(NewMemoryRepo())
	ctx := context.Background()
	_, err := s.Record(ctx, "a", result("Rust"), "img")
	require.NoError(t, err)

	list, err := s.List(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.Clear(ctx, "a"))
	list, err = s.List(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListReturnsCopies(t *testing.T) {
	s := New(NewMemoryRepo())
	ctx := context.Background()
	_, err := s.Record(ctx, "c", result("Rust"), "img")
	require.NoError(t, err)

	list, _ := s.List(ctx, "c")
	list[0].IssueName = "changed"
	again, _ := s.List(ctx, "c")
	assert.Equal(t, "Rust", again[0].IssueName)
}

func TestCustomLimit(t *testing.T) {
	s := New(NewMemoryRepo(), WithLimit(2))
	ctx := context.Background()
	for _, n := range []string{"A", "B", "C"} {
		_, err := s.Record(ctx, "", result(n), "img")
		require.NoError(t, err)
	}
	list, _ := s.List(ctx, "")
	assert.Equal(t, []string{"C", "B"}, names(list))
	assert.Equal(t, 2, s.Limit())
}

type failingRepo struct{ *MemoryRepo }

func (failingRepo) Save(context.Context, string, []Entry) error { return errors.New("disk full") }

func TestRecordPropagatesSaveError(t *testing.T) {
	s := New(failingRepo{NewMemoryRepo()})
	_, err := s.Record(context.Background(), "", result("A"), "img")
	assert.EqualError(t, err, "disk full")
}

func TestNilRepository(t *testing.T) {
	s := New(nil)
	_, err := s.Record(context.Background(), "", result("A"), "img")
	assert.ErrorIs(t, err, ErrNoRepository)
}

func TestConcurrentRecordKeepsCap(t *testing.T) {
	s := New(NewMemoryRepo())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Record(context.Background(), "c", result("X"), "img")
		}()
	}
	wg.Wait()
	list, err := s.List(context.Background(), "c")
	require.NoError(t, err)
	assert.Len(t, list, DefaultLimit)
}

func TestFileRepo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	repo := NewFileRepo(path)
	s := New(repo)
	ctx := context.Background()

	list, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Record(ctx, "", result("Leaf Spot"), "img")
	require.NoError(t, err)

	reopened := New(NewFileRepo(path))
	list, err = reopened.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Leaf Spot", list[0].IssueName)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"diagnosisHistory"`)

	require.NoError(t, s.Clear(ctx, ""))
	list, err = reopened.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileRepoCorruptReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(NewFileRepo(path))
	list, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Record(context.Background(), "", result("Rust"), "img")
	require.NoError(t, err)
	list, _ = s.List(context.Background(), "")
	assert.Len(t, list, 1)
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "diagnosisHistory", StorageKey(""))
	assert.Equal(t, "diagnosisHistory:tg:42", StorageKey("tg:42"))
}

func names(list []Entry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.IssueName
	}
	return out
}
