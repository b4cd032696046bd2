package sections

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter keeps one list per tenant in memory and normalizes on save.
type fakeAdapter struct {
	mu        sync.Mutex
	lists     map[string]Snapshot
	fetchErr  error
	saveErr   error
	fetches   int
	saves     int
	onSave    func()
	lastSaved Snapshot
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{lists: map[string]Snapshot{}}
}

func (f *fakeAdapter) Fetch(_ context.Context, tenantID string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return Snapshot{}, f.fetchErr
	}
	snap, ok := f.lists[tenantID]
	if !ok {
		return Snapshot{Sections: DefaultList()}, nil
	}
	return snap.Clone(), nil
}

func (f *fakeAdapter) Save(_ context.Context, tenantID string, snap Snapshot) (Snapshot, error) {
	if f.onSave != nil {
		f.onSave()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.lastSaved = snap.Clone()
	if f.saveErr != nil {
		return Snapshot{}, f.saveErr
	}
	if f.lists[tenantID].Revision != snap.Revision {
		return Snapshot{}, ErrStaleRevision
	}
	stored := Snapshot{Revision: snap.Revision + 1, Sections: Prepare(snap.Sections, nil)}
	// the server renames things to prove the manager adopts its answer
	for i := range stored.Sections {
		if stored.Sections[i].Kind == KindGallery {
			stored.Sections[i].Name = "Photos"
		}
	}
	f.lists[tenantID] = stored.Clone()
	return stored, nil
}

func (f *fakeAdapter) put(tenantID string, snap Snapshot) {
	f.mu.Lock()
	f.lists[tenantID] = snap.Clone()
	f.mu.Unlock()
}

func TestManager_AddTwoGalleries(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake, WithIDFunc(counter("gallery-")))
	ctx := context.Background()

	first, _, err := m.AddGallery(ctx, "7")
	require.NoError(t, err)
	second, snap, err := m.Add(ctx, "7", "Gallery Section", KindGallery)
	require.NoError(t, err)

	assert.Equal(t, []string{"nav", "hero", first.ID, second.ID, "footer"}, ids(snap.Sections))
	assert.Equal(t, 2, first.Priority)
	assert.Equal(t, 3, second.Priority)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(2), snap.Revision)
}

func TestManager_AdoptsServerResponse(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake)

	added, snap, err := m.AddGallery(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Photos", added.Name)
	assert.Equal(t, snap, m.Cached("1"))
}

func TestManager_RejectsRequiredKinds(t *testing.T) {
	m := NewManager(newFakeAdapter())
	for _, k := range []Kind{KindNav, KindHero, KindFooter, "Bogus"} {
		_, _, err := m.Add(context.Background(), "1", "x", k)
		assert.ErrorIs(t, err, ErrInvalidKind)
	}
}

func TestManager_FetchFailureFallsBackToCache(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake, WithIDFunc(counter("s")))
	ctx := context.Background()

	_, _, err := m.Add(ctx, "1", "A", KindMenu)
	require.NoError(t, err)
	_, before, err := m.Add(ctx, "1", "B", KindMenu)
	require.NoError(t, err)

	fake.fetchErr = errors.New("connection refused")
	snap, err := m.MoveUp(ctx, "1", "s2")
	require.NoError(t, err)

	assert.Equal(t, []string{"nav", "hero", "s2", "s1", "footer"}, ids(snap.Sections))
	assert.Equal(t, before.Revision+1, snap.Revision)
	assert.Equal(t, before.Revision, fake.lastSaved.Revision)
}

func TestManager_LoadFallsBackToCache(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake)
	ctx := context.Background()

	fake.fetchErr = errors.New("down")
	_, err := m.Load(ctx, "1")
	assert.ErrorIs(t, err, ErrFetchFailed)

	fake.fetchErr = nil
	loaded, err := m.Load(ctx, "1")
	require.NoError(t, err)

	fake.fetchErr = errors.New("down")
	again, err := m.Load(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, loaded, again)
}

func TestManager_SaveFailureKeepsCache(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake)
	ctx := context.Background()

	_, _, err := m.AddGallery(ctx, "1")
	require.NoError(t, err)
	before := m.Cached("1")

	fake.saveErr = errors.New("500 internal server error")
	_, _, err = m.Add(ctx, "1", "Menu", KindMenu)
	assert.ErrorIs(t, err, ErrSaveFailed)
	assert.Equal(t, before, m.Cached("1"))

	_, err = m.Reset(ctx, "1")
	assert.ErrorIs(t, err, ErrSaveFailed)
	assert.Equal(t, before, m.Cached("1"))
}

func TestManager_StaleRevisionIsSaveFailure(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake)
	ctx := context.Background()

	_, _, err := m.AddGallery(ctx, "1")
	require.NoError(t, err)
	before := m.Cached("1")

	// another session saves between our fetch and our save
	fake.onSave = func() {
		fake.onSave = nil
		other := fake.lists["1"].Clone()
		other.Revision++
		fake.put("1", other)
	}
	_, _, err = m.AddGallery(ctx, "1")
	assert.ErrorIs(t, err, ErrSaveFailed)
	assert.ErrorIs(t, err, ErrStaleRevision)
	assert.Equal(t, before, m.Cached("1"))

	// the retry fetches the newer revision and goes through
	_, snap, err := m.AddGallery(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Revision)
}

func TestManager_UsesFreshListNotCache(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake, WithIDFunc(counter("mine-")))
	ctx := context.Background()

	_, _, err := m.AddGallery(ctx, "1")
	require.NoError(t, err)

	// another client adds a section the cache does not know about
	remote := fake.lists["1"].Clone()
	remote.Sections, _ = Add(remote.Sections, "Faq", KindFaq, counter("theirs-"))
	remote.Revision++
	fake.put("1", remote)

	_, snap, err := m.Add(ctx, "1", "Menu", KindMenu)
	require.NoError(t, err)
	assert.Equal(t, []string{"nav", "hero", "mine-1", "theirs-1", "mine-2", "footer"}, ids(snap.Sections))
}

func TestManager_NoopDoesNotSave(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake)
	ctx := context.Background()

	snap, err := m.Delete(ctx, "1", "footer")
	require.NoError(t, err)
	assert.Equal(t, []string{"nav", "hero", "footer"}, ids(snap.Sections))
	assert.Equal(t, 0, fake.saves)

	_, _, err = m.Add(ctx, "1", "Menu", KindMenu)
	require.NoError(t, err)
	require.Equal(t, 1, fake.saves)

	_, err = m.Reorder(ctx, "1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.saves)
}

func TestManager_ReorderOutOfRange(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake)
	_, err := m.Reorder(context.Background(), "1", 0, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = m.Reorder(context.Background(), "1", 99, 99)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, 0, fake.saves)
}

func TestManager_DeleteAndMove(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake, WithIDFunc(counter("s")))
	ctx := context.Background()

	for _, k := range []Kind{KindMenu, KindReviews, KindFaq} {
		_, _, err := m.Add(ctx, "1", "", k)
		require.NoError(t, err)
	}

	snap, err := m.Move(ctx, "1", "s3", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"nav", "hero", "s3", "s1", "s2", "footer"}, ids(snap.Sections))

	snap, err = m.MoveDown(ctx, "1", "s3")
	require.NoError(t, err)
	assert.Equal(t, []string{"nav", "hero", "s1", "s3", "s2", "footer"}, ids(snap.Sections))

	snap, err = m.Delete(ctx, "1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"nav", "hero", "s3", "s2", "footer"}, ids(snap.Sections))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, priorities(snap.Sections))
}

func TestManager_BusyTenant(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake)
	ctx := context.Background()

	release := make(chan struct{})
	entered := make(chan struct{})
	fake.onSave = func() {
		close(entered)
		<-release
	}

	done := make(chan error)
	go func() {
		_, _, err := m.AddGallery(ctx, "1")
		done <- err
	}()
	<-entered

	_, _, err := m.AddGallery(ctx, "1")
	assert.ErrorIs(t, err, ErrBusy)

	// other tenants are not blocked
	fake.onSave = nil
	_, _, err = m.AddGallery(ctx, "2")
	assert.NoError(t, err)

	close(release)
	assert.NoError(t, <-done)
}

func TestManager_CancelledContextDropsLateResult(t *testing.T) {
	fake := newFakeAdapter()
	m := NewManager(fake)
	ctx, cancel := context.WithCancel(context.Background())

	fake.onSave = cancel
	_, _, err := m.AddGallery(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Snapshot{}, m.Cached("1"))
}
