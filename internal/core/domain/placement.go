package domain

import "go.trai.ch/zerr"

// PlacementKind selects where a fed fragment goes.
type PlacementKind uint8

const (
	// PlacementAppend adds the fragment as the last child of the file root.
	PlacementAppend PlacementKind = iota
	// PlacementAfter splices the fragment after the sibling named by the anchor.
	PlacementAfter
	// PlacementBefore splices the fragment before the sibling named by the anchor.
	PlacementBefore
	// PlacementInto appends the fragment as the last child of the fragment named by the anchor.
	PlacementInto
	// PlacementReplace substitutes the fragment named by the anchor.
	PlacementReplace
)

// String returns the placement kind as used in recipes and cache keys.
func (k PlacementKind) String() string {
	switch k {
	case PlacementAppend:
		return "append"
	case PlacementAfter:
		return "after"
	case PlacementBefore:
		return "before"
	case PlacementInto:
		return "into"
	case PlacementReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Placement pairs a kind with the fragment name it is relative to.
type Placement struct {
	Kind   PlacementKind
	Anchor string
}

// AtEnd places a fragment at the end of the file.
func AtEnd() Placement { return Placement{Kind: PlacementAppend} }

// After places a fragment after the fragment named anchor.
func After(anchor string) Placement { return Placement{Kind: PlacementAfter, Anchor: anchor} }

// Before places a fragment before the fragment named anchor.
func Before(anchor string) Placement { return Placement{Kind: PlacementBefore, Anchor: anchor} }

// Into places a fragment at the end of the fragment named container.
func Into(container string) Placement { return Placement{Kind: PlacementInto, Anchor: container} }

// Replacing places a fragment in place of the fragment named target.
func Replacing(target string) Placement { return Placement{Kind: PlacementReplace, Anchor: target} }

// Validate checks that the kind is known and that anchored kinds carry an anchor.
func (p Placement) Validate() error {
	switch p.Kind {
	case PlacementAppend:
		return nil
	case PlacementAfter, PlacementBefore, PlacementInto, PlacementReplace:
		if p.Anchor == "" {
			return zerr.With(ErrInvalidPlacement, "kind", p.Kind.String())
		}
		return nil
	default:
		return zerr.With(ErrInvalidPlacement, "kind", int(p.Kind))
	}
}

// String returns "kind" or "kind:anchor".
func (p Placement) String() string {
	if p.Kind == PlacementAppend {
		return p.Kind.String()
	}
	return p.Kind.String() + ":" + p.Anchor
}
