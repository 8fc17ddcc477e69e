package browse

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"creature-catalog-service/internal/domain"
	"creature-catalog-service/internal/favorites"
	"creature-catalog-service/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedExecutor struct {
	mu    sync.Mutex
	calls []query.Params
	fn    func(query.Params) (*query.Result, error)
}

func (e *scriptedExecutor) Execute(_ context.Context, p query.Params) (*query.Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, p)
	fn := e.fn
	e.mu.Unlock()
	if fn != nil {
		return fn(p)
	}
	return &query.Result{Page: []domain.Creature{{ID: 1, Name: "bulbasaur"}}, Total: 1}, nil
}

func (e *scriptedExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *scriptedExecutor) lastCall() query.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[len(e.calls)-1]
}

func (e *scriptedExecutor) callsSnapshot() []query.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]query.Params, len(e.calls))
	copy(out, e.calls)
	return out
}

type stubStore struct {
	ids []int64
}

func (s *stubStore) LoadIDs(context.Context) ([]int64, error) { return s.ids, nil }
func (s *stubStore) SaveIDs(context.Context, []int64) error   { return nil }

func loadedFavorites(t *testing.T, ids ...int64) *favorites.Set {
	t.Helper()
	set := favorites.NewSet(&stubStore{ids: ids})
	set.LoadFromStore(context.Background())
	return set
}

func waitSettled(t *testing.T, s *Session) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.Loading && !snap.SearchPending
	}, time.Second, 5*time.Millisecond)
	return s.Snapshot()
}

func TestSession_InitialQueryLoadsFirstPage(t *testing.T) {
	exec := &scriptedExecutor{}
	s := NewSession(exec, loadedFavorites(t), 20, 10*time.Millisecond)
	defer s.Close()

	snap := waitSettled(t, s)
	assert.Equal(t, 1, snap.Total)
	require.Len(t, snap.Page, 1)
	assert.Equal(t, "bulbasaur", snap.Page[0].Name)
	assert.Equal(t, 0, snap.CurrentPage())
}

func TestSession_SearchDebouncesToFinalValue(t *testing.T) {
	exec := &scriptedExecutor{}
	s := NewSession(exec, loadedFavorites(t), 20, 25*time.Millisecond)
	defer s.Close()
	waitSettled(t, s)

	s.GoToPage(2)
	waitSettled(t, s)
	before := exec.callCount()

	s.SetQuery("c")
	s.SetQuery("ch")
	s.SetQuery("char")
	assert.True(t, s.Snapshot().SearchPending)

	snap := waitSettled(t, s)
	// One query for the settled value, none for the keystrokes.
	assert.Equal(t, before+1, exec.callCount())
	assert.Equal(t, "char", exec.lastCall().Text)
	assert.Equal(t, 0, snap.State.Offset, "settled search resets pagination")
}

func TestSession_StaleResponseIsDiscarded(t *testing.T) {
	slowDone := make(chan struct{})
	release := make(chan struct{})
	exec := &scriptedExecutor{}
	exec.fn = func(p query.Params) (*query.Result, error) {
		if len(p.Categories) == 0 {
			// The superseded unfiltered query: hold it until after the
			// newer one has landed.
			<-release
			defer close(slowDone)
			return &query.Result{Page: []domain.Creature{{ID: 1, Name: "stale"}}, Total: 999}, nil
		}
		return &query.Result{Page: []domain.Creature{{ID: 7, Name: "squirtle"}}, Total: 1}, nil
	}

	s := NewSession(exec, loadedFavorites(t), 20, 10*time.Millisecond)
	defer s.Close()

	s.SetCategories([]string{"water"})
	require.Eventually(t, func() bool { return s.Snapshot().Total == 1 }, time.Second, 5*time.Millisecond)

	close(release)
	<-slowDone

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Total, "superseded response must not overwrite the newer result")
	require.Len(t, snap.Page, 1)
	assert.Equal(t, "squirtle", snap.Page[0].Name)
}

func TestSession_FavoritesOnlyWaitsForSetToLoad(t *testing.T) {
	exec := &scriptedExecutor{}
	favs := favorites.NewSet(&stubStore{ids: []int64{25}})
	s := NewSession(exec, favs, 20, 10*time.Millisecond)
	defer s.Close()
	waitSettled(t, s)
	before := exec.callCount()

	s.ToggleFavoritesOnly()

	assert.True(t, s.Snapshot().Loading, "stays loading until favorites are known")
	assert.Equal(t, before, exec.callCount(), "must not query with an unknown favorite set")

	favs.LoadFromStore(context.Background())
	s.Refresh()

	waitSettled(t, s)
	last := exec.lastCall()
	assert.True(t, last.FavoritesOnly)
	assert.Equal(t, []int64{25}, last.FavoriteIDs)
}

func TestSession_ErrorSurfacedThenClearedOnNextSuccess(t *testing.T) {
	boom := errors.New("backend down")
	var fail atomic.Bool
	exec := &scriptedExecutor{}
	exec.fn = func(query.Params) (*query.Result, error) {
		if fail.Load() {
			return nil, boom
		}
		return &query.Result{Page: []domain.Creature{}, Total: 0}, nil
	}

	s := NewSession(exec, loadedFavorites(t), 20, 10*time.Millisecond)
	defer s.Close()
	waitSettled(t, s)

	fail.Store(true)
	s.ToggleCategory("fire")
	require.Eventually(t, func() bool { return s.Snapshot().Err != nil }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Snapshot().Err, boom)

	fail.Store(false)
	s.ToggleCategory("fire")
	snap := waitSettled(t, s)
	assert.NoError(t, snap.Err)
}

func TestSession_ClearAllCancelsPendingSearch(t *testing.T) {
	exec := &scriptedExecutor{}
	s := NewSession(exec, loadedFavorites(t), 20, 40*time.Millisecond)
	defer s.Close()
	waitSettled(t, s)

	s.SetQuery("doomed")
	s.ClearAll()

	snap := waitSettled(t, s)
	assert.False(t, snap.SearchPending)
	assert.Equal(t, "", snap.State.DebouncedQuery)

	// The cancelled keystroke must never fire a query later.
	time.Sleep(80 * time.Millisecond)
	for _, call := range exec.callsSnapshot() {
		assert.NotEqual(t, "doomed", call.Text)
	}
}

func TestSession_LocationRoundTrip(t *testing.T) {
	exec := &scriptedExecutor{}
	s := NewSession(exec, loadedFavorites(t), 20, 10*time.Millisecond)
	defer s.Close()
	waitSettled(t, s)

	s.ToggleCategory("fire")
	s.ToggleFavoritesOnly()
	waitSettled(t, s)

	values := s.Location()
	assert.Equal(t, "fire", values.Get("types"))
	assert.Equal(t, "true", values.Get("favorites"))

	restored := NewSession(exec, loadedFavorites(t), 20, 10*time.Millisecond)
	defer restored.Close()
	restored.Restore(values)
	snap := waitSettled(t, restored)
	assert.Equal(t, []string{"fire"}, snap.State.Categories)
	assert.True(t, snap.State.FavoritesOnly)
}
