package sections

import (
	"fmt"
	"sort"
	"strings"
)

// Partition splits the list into the pinned top group (ordered by kind rank),
// the floating sections (stable by priority) and the pinned bottom group.
func Partition(l List) (top, floating, bottom List) {
	for _, s := range l {
		switch s.Placement() {
		case PlacementTop:
			top = append(top, s)
		case PlacementBottom:
			bottom = append(bottom, s)
		default:
			floating = append(floating, s)
		}
	}
	sort.SliceStable(top, func(i, j int) bool {
		return kindSpecs[top[i].Kind].Rank < kindSpecs[top[j].Kind].Rank
	})
	sort.SliceStable(floating, func(i, j int) bool {
		return floating[i].Priority < floating[j].Priority
	})
	return top, floating, bottom
}

func Compose(top, floating, bottom List) List {
	out := make(List, 0, len(top)+len(floating)+len(bottom))
	out = append(out, top...)
	out = append(out, floating...)
	out = append(out, bottom...)
	return out
}

// Normalize returns the list in page order.
func Normalize(l List) List {
	return Compose(Partition(l))
}

// Add inserts a new section right before the bottom group. Its priority
// follows the highest floating priority, or FirstFloatingPriority when no
// floating section exists.
func Add(l List, name string, kind Kind, gen IDFunc) (List, Section) {
	priority := FirstFloatingPriority
	found := false
	for _, s := range l {
		if s.Placement() != PlacementFloating {
			continue
		}
		if !found || s.Priority+1 > priority {
			priority = s.Priority + 1
			found = true
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = kind.Label()
	}
	added := Section{
		ID:       uniqueID(l.ids(), gen),
		Name:     name,
		Kind:     kind,
		Priority: priority,
	}

	at := len(l)
	for i, s := range l {
		if s.Placement() == PlacementBottom {
			at = i
			break
		}
	}

	out := make(List, 0, len(l)+1)
	out = append(out, l[:at]...)
	out = append(out, added)
	out = append(out, l[at:]...)
	return out, added
}

// Delete removes the section with the given id. Locked or required sections
// and unknown ids leave the list unchanged.
func Delete(l List, id string) (List, bool) {
	return DeleteAt(l, l.IndexOf(id))
}

func DeleteAt(l List, index int) (List, bool) {
	if index < 0 || index >= len(l) || !l[index].Removable() {
		return l.Clone(), false
	}
	out := make(List, 0, len(l)-1)
	out = append(out, l[:index]...)
	out = append(out, l[index+1:]...)
	return out, true
}

// Reorder moves the floating section at from to to; both are positions in the
// floating subsequence. The floating sections keep the priority slots they
// already held, reassigned in the new order. A locked section is not dragged.
func Reorder(l List, from, to int) (List, bool, error) {
	top, floating, bottom := Partition(l)
	if from < 0 || from >= len(floating) || to < 0 || to >= len(floating) {
		return nil, false, fmt.Errorf("%w: move %d to %d of %d", ErrOutOfRange, from, to, len(floating))
	}
	if from == to || !floating[from].Removable() {
		return l.Clone(), false, nil
	}

	slots := make([]int, len(floating))
	for i, s := range floating {
		slots[i] = s.Priority
	}

	moved := floating[from]
	rest := make(List, 0, len(floating))
	rest = append(rest, floating[:from]...)
	rest = append(rest, floating[from+1:]...)

	reordered := make(List, 0, len(floating))
	reordered = append(reordered, rest[:to]...)
	reordered = append(reordered, moved)
	reordered = append(reordered, rest[to:]...)

	for i := range reordered {
		p := slots[i]
		if i > 0 && p <= reordered[i-1].Priority {
			p = reordered[i-1].Priority + 1
		}
		reordered[i].Priority = p
	}
	return Compose(top, reordered, bottom), true, nil
}

// Move places the section with id at position to of the floating subsequence.
// Unknown and pinned sections are left where they are.
func Move(l List, id string, to int) (List, bool, error) {
	_, floating, _ := Partition(l)
	from := floating.IndexOf(id)
	if from < 0 {
		return l.Clone(), false, nil
	}
	return Reorder(l, from, to)
}

func MoveUp(l List, id string) (List, bool) {
	return step(l, id, -1)
}

func MoveDown(l List, id string) (List, bool) {
	return step(l, id, 1)
}

func step(l List, id string, delta int) (List, bool) {
	_, floating, _ := Partition(l)
	from := floating.IndexOf(id)
	to := from + delta
	if from < 0 || to < 0 || to >= len(floating) {
		return l.Clone(), false
	}
	out, changed, err := Reorder(l, from, to)
	if err != nil {
		return l.Clone(), false
	}
	return out, changed
}

// Reindex sets every priority to the section's position.
func Reindex(l List) List {
	out := l.Clone()
	for i := range out {
		out[i].Priority = i
	}
	return out
}

// Validate fills in whatever a section is missing: unknown kinds become Cards,
// blank or duplicated ids are regenerated, blank names take the kind label and
// the lock flag follows the kind.
func Validate(l List, gen IDFunc) List {
	taken := l.ids()
	seen := make(map[string]struct{}, len(l))
	out := make(List, 0, len(l))
	for _, s := range l {
		kind, err := ParseKind(string(s.Kind))
		if err != nil {
			kind = KindCards
		}
		s.Kind = kind

		if _, dup := seen[s.ID]; s.ID == "" || dup {
			s.ID = uniqueID(taken, gen)
			taken[s.ID] = struct{}{}
		}
		seen[s.ID] = struct{}{}

		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			s.Name = kind.Label()
		}
		s.IsLocked = kind.Required()
		out = append(out, s)
	}
	return out
}

// EnsureRequired merges the default template into the list by id: each
// required kind ends up exactly once, preferring the section that carries the
// template id.
func EnsureRequired(l List) List {
	keep := make(map[Kind]int)
	for _, tpl := range DefaultList() {
		keep[tpl.Kind] = -1
		for i, s := range l {
			if s.Kind != tpl.Kind {
				continue
			}
			if s.ID == tpl.ID {
				keep[tpl.Kind] = i
				break
			}
			if keep[tpl.Kind] < 0 {
				keep[tpl.Kind] = i
			}
		}
	}

	out := make(List, 0, len(l)+3)
	for i, s := range l {
		if want, required := keep[s.Kind]; required && want != i {
			continue
		}
		out = append(out, s)
	}

	taken := out.ids()
	for _, tpl := range DefaultList() {
		if keep[tpl.Kind] >= 0 {
			continue
		}
		fixed := tpl.ID
		tpl.ID = uniqueID(taken, func() string { return fixed })
		taken[tpl.ID] = struct{}{}
		out = append(out, tpl)
	}
	return out
}

// Prepare is applied to every list before it is saved.
func Prepare(l List, gen IDFunc) List {
	return Reindex(Normalize(EnsureRequired(Validate(l, gen))))
}

// Check reports the first invariant the list breaks.
func Check(l List) error {
	counts := make(map[Kind]int)
	ids := make(map[string]struct{}, len(l))
	last := PlacementTop
	lastRank := -1
	for i, s := range l {
		if !s.Kind.Valid() {
			return fmt.Errorf("%w: section %d has unknown kind %q", ErrInvariant, i, s.Kind)
		}
		if s.ID == "" {
			return fmt.Errorf("%w: section %d has no id", ErrInvariant, i)
		}
		if _, dup := ids[s.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvariant, s.ID)
		}
		ids[s.ID] = struct{}{}
		counts[s.Kind]++

		if s.Kind.Required() != s.IsLocked {
			return fmt.Errorf("%w: %s %q has lock flag %v", ErrInvariant, s.Kind, s.ID, s.IsLocked)
		}

		p := s.Placement()
		if placementOrder(p) < placementOrder(last) {
			return fmt.Errorf("%w: %s %q is out of place", ErrInvariant, s.Kind, s.ID)
		}
		if p == PlacementTop {
			rank := kindSpecs[s.Kind].Rank
			if rank < lastRank {
				return fmt.Errorf("%w: %s %q is out of place", ErrInvariant, s.Kind, s.ID)
			}
			lastRank = rank
		}
		last = p
	}
	for _, k := range []Kind{KindNav, KindHero, KindFooter} {
		if counts[k] != 1 {
			return fmt.Errorf("%w: want exactly one %s, have %d", ErrInvariant, k, counts[k])
		}
	}
	return nil
}

func placementOrder(p Placement) int {
	switch p {
	case PlacementTop:
		return 0
	case PlacementBottom:
		return 2
	default:
		return 1
	}
}
