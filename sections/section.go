// Package sections keeps the ordered, partially locked list of sections that
// make up a restaurant page, and reconciles it with the authoritative store.
package sections

import "errors"

// LegacyBottomPriority is the footer priority older lists were stored with.
// Placement is structural, so the value is only tolerated on input.
const LegacyBottomPriority = 9999

// FirstFloatingPriority is the priority given to the first unlocked section.
const FirstFloatingPriority = 2

var (
	ErrFetchFailed   = errors.New("failed to fetch sections")
	ErrSaveFailed    = errors.New("failed to save sections")
	ErrStaleRevision = errors.New("section list was changed by another session")
	ErrBusy          = errors.New("another section operation is in progress")
	ErrInvalidKind   = errors.New("invalid section kind")
	ErrOutOfRange    = errors.New("position out of range")
	ErrInvariant     = errors.New("section list invariant violated")
)

type Section struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     Kind   `json:"section"`
	IsLocked bool   `json:"isLocked"`
	Priority int    `json:"priority"`
}

// Placement is derived from the kind; a locked section of a floating kind
// (corrupt data) is still treated as floating.
func (s Section) Placement() Placement {
	return s.Kind.Placement()
}

// Removable reports whether the section may be deleted or dragged. Both the
// lock flag and the kind are checked since the two can diverge.
func (s Section) Removable() bool {
	return !s.IsLocked && !s.Kind.Required()
}

type List []Section

func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

func (l List) IndexOf(id string) int {
	for i, s := range l {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (l List) Find(id string) (Section, bool) {
	if i := l.IndexOf(id); i >= 0 {
		return l[i], true
	}
	return Section{}, false
}

func (l List) ids() map[string]struct{} {
	m := make(map[string]struct{}, len(l))
	for _, s := range l {
		m[s.ID] = struct{}{}
	}
	return m
}

// DefaultList is the template every page starts from.
func DefaultList() List {
	return List{
		{ID: "nav", Name: KindNav.Label(), Kind: KindNav, IsLocked: true, Priority: 0},
		{ID: "hero", Name: KindHero.Label(), Kind: KindHero, IsLocked: true, Priority: 1},
		{ID: "footer", Name: KindFooter.Label(), Kind: KindFooter, IsLocked: true, Priority: LegacyBottomPriority},
	}
}

// Snapshot is a list together with the revision it was read at.
type Snapshot struct {
	Revision int64 `json:"revision"`
	Sections List  `json:"sections"`
}

func (s Snapshot) Clone() Snapshot {
	return Snapshot{Revision: s.Revision, Sections: s.Sections.Clone()}
}
