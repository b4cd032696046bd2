package sections

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Adapter is the authoritative home of a tenant's section list. Save must
// reject a snapshot whose revision is not the stored one with ErrStaleRevision
// and return what it actually stored.
type Adapter interface {
	Fetch(ctx context.Context, tenantID string) (Snapshot, error)
	Save(ctx context.Context, tenantID string, snap Snapshot) (Snapshot, error)
}

// Manager applies section operations for many tenants. Every mutation fetches
// the current list, applies the change, saves it against the fetched revision
// and adopts the stored result. Operations for one tenant never overlap.
type Manager struct {
	adapter Adapter
	log     *zap.Logger
	newID   IDFunc

	mu      sync.Mutex
	tenants map[string]*tenantState
}

type tenantState struct {
	busy   sync.Mutex
	snap   Snapshot
	loaded bool
}

type Option func(*Manager)

func WithIDFunc(gen IDFunc) Option {
	return func(m *Manager) { m.newID = gen }
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func NewManager(adapter Adapter, opts ...Option) *Manager {
	m := &Manager{
		adapter: adapter,
		log:     zap.NewNop(),
		newID:   NewID,
		tenants: make(map[string]*tenantState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) state(tenantID string) *tenantState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tenants[tenantID]
	if !ok {
		st = &tenantState{}
		m.tenants[tenantID] = st
	}
	return st
}

// Cached returns the last list adopted for the tenant without a round trip.
func (m *Manager) Cached(tenantID string) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tenants[tenantID]
	if !ok {
		return Snapshot{}
	}
	return st.snap.Clone()
}

// Load refreshes the cache from the adapter. When the fetch fails the cached
// list is returned instead; ErrFetchFailed only surfaces if nothing was ever
// loaded.
func (m *Manager) Load(ctx context.Context, tenantID string) (Snapshot, error) {
	st := m.state(tenantID)
	if !st.busy.TryLock() {
		return Snapshot{}, ErrBusy
	}
	defer st.busy.Unlock()

	snap, err := m.adapter.Fetch(ctx, tenantID)
	if err != nil {
		if !st.loaded {
			return Snapshot{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		m.log.Warn("fetch failed, serving cached sections",
			zap.String("tenant", tenantID), zap.Error(err))
		return st.snap.Clone(), nil
	}
	if ctx.Err() != nil {
		return Snapshot{}, ctx.Err()
	}
	m.adopt(st, snap)
	return snap.Clone(), nil
}

// Add appends a section of an addable kind and returns it as stored.
func (m *Manager) Add(ctx context.Context, tenantID, name string, kind Kind) (Section, Snapshot, error) {
	if spec, ok := kind.Spec(); !ok || !spec.Addable {
		return Section{}, Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	var added Section
	snap, err := m.mutate(ctx, tenantID, "add", func(l List) (List, bool, error) {
		var out List
		out, added = Add(l, name, kind, m.newID)
		return out, true, nil
	})
	if err != nil {
		return Section{}, snap, err
	}
	if stored, ok := snap.Sections.Find(added.ID); ok {
		added = stored
	}
	return added, snap, nil
}

func (m *Manager) AddGallery(ctx context.Context, tenantID string) (Section, Snapshot, error) {
	return m.Add(ctx, tenantID, KindGallery.Label(), KindGallery)
}

func (m *Manager) Delete(ctx context.Context, tenantID, id string) (Snapshot, error) {
	return m.mutate(ctx, tenantID, "delete", func(l List) (List, bool, error) {
		out, changed := Delete(l, id)
		return out, changed, nil
	})
}

func (m *Manager) MoveUp(ctx context.Context, tenantID, id string) (Snapshot, error) {
	return m.mutate(ctx, tenantID, "move_up", func(l List) (List, bool, error) {
		out, changed := MoveUp(l, id)
		return out, changed, nil
	})
}

func (m *Manager) MoveDown(ctx context.Context, tenantID, id string) (Snapshot, error) {
	return m.mutate(ctx, tenantID, "move_down", func(l List) (List, bool, error) {
		out, changed := MoveDown(l, id)
		return out, changed, nil
	})
}

// Move drags the section with id to position to of the unlocked sections.
func (m *Manager) Move(ctx context.Context, tenantID, id string, to int) (Snapshot, error) {
	return m.mutate(ctx, tenantID, "move", func(l List) (List, bool, error) {
		return Move(l, id, to)
	})
}

// Reorder moves by position within the unlocked sections of the freshly
// fetched list.
func (m *Manager) Reorder(ctx context.Context, tenantID string, from, to int) (Snapshot, error) {
	return m.mutate(ctx, tenantID, "reorder", func(l List) (List, bool, error) {
		return Reorder(l, from, to)
	})
}

// Reset replaces the list with the default template.
func (m *Manager) Reset(ctx context.Context, tenantID string) (Snapshot, error) {
	return m.mutate(ctx, tenantID, "reset", func(List) (List, bool, error) {
		return DefaultList(), true, nil
	})
}

func (m *Manager) mutate(ctx context.Context, tenantID, op string, fn func(List) (List, bool, error)) (Snapshot, error) {
	st := m.state(tenantID)
	if !st.busy.TryLock() {
		return Snapshot{}, ErrBusy
	}
	defer st.busy.Unlock()

	log := m.log.With(zap.String("tenant", tenantID), zap.String("op", op))

	base, err := m.adapter.Fetch(ctx, tenantID)
	if err != nil {
		log.Warn("fetch failed, using cached sections", zap.Error(err))
		base = st.snap.Clone()
		if !st.loaded {
			base.Sections = DefaultList()
		}
	}

	next, changed, err := fn(base.Sections.Clone())
	if err != nil {
		return st.snap.Clone(), err
	}
	if !changed {
		return base.Clone(), nil
	}

	saved, err := m.adapter.Save(ctx, tenantID, Snapshot{
		Revision: base.Revision,
		Sections: Prepare(next, m.newID),
	})
	if err != nil {
		log.Error("save failed", zap.Int64("revision", base.Revision), zap.Error(err))
		if errors.Is(err, ErrSaveFailed) {
			return st.snap.Clone(), err
		}
		return st.snap.Clone(), fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if ctx.Err() != nil {
		return st.snap.Clone(), ctx.Err()
	}

	m.adopt(st, saved)
	log.Debug("sections saved", zap.Int64("revision", saved.Revision), zap.Int("count", len(saved.Sections)))
	return saved.Clone(), nil
}

func (m *Manager) adopt(st *tenantState, snap Snapshot) {
	m.mu.Lock()
	st.snap = snap.Clone()
	st.loaded = true
	m.mu.Unlock()
}
