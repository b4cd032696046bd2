package sections

import (
	"fmt"
	"strings"
)

// Kind selects which renderer and editor applies to a section.
type Kind string

const (
	KindNav       Kind = "Nav"
	KindHero      Kind = "Hero"
	KindFooter    Kind = "Footer"
	KindGallery   Kind = "Gallery"
	KindLocations Kind = "Locations"
	KindFaq       Kind = "Faq"
	KindFeatures  Kind = "Features"
	KindReviews   Kind = "Reviews"
	KindMenu      Kind = "Menu"
	KindGiftCards Kind = "GiftCards"
	KindCards     Kind = "Cards"
)

// Placement is where a kind lives in the page.
type Placement int

const (
	PlacementFloating Placement = iota
	PlacementTop
	PlacementBottom
)

// KindSpec describes a kind. Required kinds have a FixedID and are never addable.
type KindSpec struct {
	Label     string
	Placement Placement
	Rank      int
	FixedID   string
	Addable   bool
}

var kindOrder = []Kind{
	KindNav, KindHero, KindFooter,
	KindGallery, KindLocations, KindFaq, KindFeatures,
	KindReviews, KindMenu, KindGiftCards, KindCards,
}

var kindSpecs = map[Kind]KindSpec{
	KindNav:       {Label: "Navigation", Placement: PlacementTop, Rank: 0, FixedID: "nav"},
	KindHero:      {Label: "Hero", Placement: PlacementTop, Rank: 1, FixedID: "hero"},
	KindFooter:    {Label: "Footer", Placement: PlacementBottom, Rank: 0, FixedID: "footer"},
	KindGallery:   {Label: "Gallery Section", Addable: true},
	KindLocations: {Label: "Locations", Addable: true},
	KindFaq:       {Label: "FAQ", Addable: true},
	KindFeatures:  {Label: "Features", Addable: true},
	KindReviews:   {Label: "Reviews", Addable: true},
	KindMenu:      {Label: "Menu", Addable: true},
	KindGiftCards: {Label: "Gift Cards", Addable: true},
	KindCards:     {Label: "Cards", Addable: true},
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// AddableKinds returns the kinds offered in the "Add Section" menu.
func AddableKinds() []Kind {
	var out []Kind
	for _, k := range kindOrder {
		if kindSpecs[k].Addable {
			out = append(out, k)
		}
	}
	return out
}

// Spec looks up the kind in the table.
func (k Kind) Spec() (KindSpec, bool) {
	s, ok := kindSpecs[k]
	return s, ok
}

func (k Kind) Valid() bool {
	_, ok := kindSpecs[k]
	return ok
}

// Required reports whether the page must always carry exactly one section of this kind.
func (k Kind) Required() bool {
	return kindSpecs[k].FixedID != ""
}

func (k Kind) Placement() Placement {
	return kindSpecs[k].Placement
}

func (k Kind) Label() string {
	if s, ok := kindSpecs[k]; ok {
		return s.Label
	}
	return string(k)
}

// ParseKind accepts the tag case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for _, k := range kindOrder {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}
