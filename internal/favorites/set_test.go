package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecordStore records every SaveIDs call and serves a canned load result.
type fakeRecordStore struct {
	mu      sync.Mutex
	loaded  []int64
	loadErr error
	saveErr error
	saves   [][]int64
}

func (f *fakeRecordStore) LoadIDs(context.Context) ([]int64, error) {
	return f.loaded, f.loadErr
}

func (f *fakeRecordStore) SaveIDs(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := make([]int64, len(ids))
	copy(snapshot, ids)
	f.saves = append(f.saves, snapshot)
	return f.saveErr
}

func (f *fakeRecordStore) lastSave() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return nil
	}
	return f.saves[len(f.saves)-1]
}

func TestSet_StartsLoadingAndEmpty(t *testing.T) {
	s := NewSet(&fakeRecordStore{})

	assert.True(t, s.Loading())
	assert.Equal(t, 0, s.Count())
	assert.False(t, s.HasAny())
	assert.False(t, s.IsFavorite(1))
}

func TestSet_LoadFromStore(t *testing.T) {
	store := &fakeRecordStore{loaded: []int64{6, 9001, 25}}
	s := NewSet(store)

	s.LoadFromStore(context.Background())

	assert.False(t, s.Loading())
	assert.Equal(t, []int64{6, 9001, 25}, s.IDs())
	assert.True(t, s.IsFavorite(9001))
}

func TestSet_LoadFromStore_DropsDuplicatesAndNonPositive(t *testing.T) {
	store := &fakeRecordStore{loaded: []int64{6, 6, -3, 0, 25}}
	s := NewSet(store)

	s.LoadFromStore(context.Background())

	assert.Equal(t, []int64{6, 25}, s.IDs())
}

func TestSet_LoadFromStore_ErrorRecoversToEmpty(t *testing.T) {
	store := &fakeRecordStore{loadErr: errors.New("connection refused")}
	s := NewSet(store)

	s.LoadFromStore(context.Background())

	assert.False(t, s.Loading(), "a failed load still completes the loading window")
	assert.Equal(t, 0, s.Count())
}

func TestSet_LoadFromStore_OnlyOnce(t *testing.T) {
	store := &fakeRecordStore{loaded: []int64{1}}
	s := NewSet(store)

	s.LoadFromStore(context.Background())
	store.loaded = []int64{2, 3}
	s.LoadFromStore(context.Background())

	assert.Equal(t, []int64{1}, s.IDs())
}

func TestSet_AddRemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	store := &fakeRecordStore{}
	s := NewSet(store)
	s.LoadFromStore(ctx)

	s.Add(ctx, 6)
	s.Add(ctx, 6)
	assert.Equal(t, []int64{6}, s.IDs())
	assert.Len(t, store.saves, 1, "a no-op add must not re-persist")

	s.Remove(ctx, 99)
	assert.Len(t, store.saves, 1, "a no-op remove must not re-persist")

	s.Remove(ctx, 6)
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, []int64{}, store.lastSave())
}

func TestSet_ToggleTwiceRoundTripsToEmpty(t *testing.T) {
	ctx := context.Background()
	store := &fakeRecordStore{}
	s := NewSet(store)
	s.LoadFromStore(ctx)

	assert.True(t, s.Toggle(ctx, 151))
	assert.True(t, s.IsFavorite(151))
	assert.False(t, s.Toggle(ctx, 151))
	assert.False(t, s.IsFavorite(151))
	assert.Equal(t, []int64{}, store.lastSave(), "persisted set must end empty")
}

func TestSet_InsertionOrderPreserved(t *testing.T) {
	ctx := context.Background()
	store := &fakeRecordStore{}
	s := NewSet(store)
	s.LoadFromStore(ctx)

	s.Add(ctx, 25)
	s.Add(ctx, 6)
	s.Add(ctx, 150)
	s.Remove(ctx, 6)
	s.Add(ctx, 6)

	assert.Equal(t, []int64{25, 150, 6}, s.IDs())
	assert.Equal(t, []int64{25, 150, 6}, store.lastSave())
}

func TestSet_PersistenceFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	store := &fakeRecordStore{saveErr: errors.New("disk full")}
	s := NewSet(store)
	s.LoadFromStore(ctx)

	s.Add(ctx, 7)

	assert.True(t, s.IsFavorite(7), "in-memory state stays authoritative")
	require.Len(t, store.saves, 1)
}

func TestSet_Clear(t *testing.T) {
	ctx := context.Background()
	store := &fakeRecordStore{loaded: []int64{1, 2, 3}}
	s := NewSet(store)
	s.LoadFromStore(ctx)

	s.Clear(ctx)
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, []int64{}, store.lastSave())

	saves := len(store.saves)
	s.Clear(ctx)
	assert.Len(t, store.saves, saves, "clearing an empty set must not re-persist")
}
