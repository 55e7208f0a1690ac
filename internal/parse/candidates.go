package parse

import (
	"encoding/json"

	"github.com/dmitrijs2005/annfeed/internal/fetch"
)

// Candidate is one canonical stub paired with its requested-language
// counterparts, matched by external identifier.
type Candidate struct {
	Ref       fetch.Stub
	Target    fetch.Stub
	HasTarget bool
	ZH        fetch.Content
	HasZH     bool
	Content   fetch.Content
	ZHTitle   string
}

// Banner returns the requested-language image, falling back to the
// canonical one.
func (c Candidate) Banner(pic bool) string {
	if pic {
		return FirstNonEmpty(c.Target.Image, c.Ref.Image, c.Target.Banner, c.Ref.Banner)
	}
	return FirstNonEmpty(c.Target.Banner, c.Ref.Banner)
}

// GroupFilter selects the list groups a pass walks.
type GroupFilter func(fetch.Group) bool

// Labelled keeps groups with one of the given labels.
func Labelled(labels ...string) GroupFilter {
	return func(g fetch.Group) bool { return oneOf(g.Label, labels) }
}

// TypeIDs keeps groups with one of the given type ids.
func TypeIDs(ids ...int) GroupFilter {
	return func(g fetch.Group) bool {
		for _, id := range ids {
			if g.TypeID == id {
				return true
			}
		}
		return false
	}
}

// Candidates walks the reference list (or picture list when pic is set)
// of b in order.
func Candidates(b *fetch.Bundle, pic bool, keep GroupFilter) []Candidate {
	ref := b.Reference()
	groups := ref.Groups
	if pic {
		groups = ref.PicGroups
	}

	var out []Candidate
	for _, g := range groups {
		if keep != nil && !keep(g) {
			continue
		}
		for _, s := range g.Stubs {
			c := Candidate{Ref: s}
			if pic {
				c.ZH, c.HasZH = ref.PicContent(s.ID)
				c.Target, c.HasTarget = b.PicStub(s.ID)
				c.Content, _ = b.PicContent(s.ID)
			} else {
				c.ZH, c.HasZH = ref.Content(s.ID)
				c.Target, c.HasTarget = b.Stub(s.ID)
				c.Content, _ = b.Content(s.ID)
			}
			c.ZHTitle = StripTags(FirstNonEmpty(c.ZH.Title, s.Title))
			out = append(out, c)
		}
	}
	return out
}

// RawJSON renders a raw payload for the content column.
func RawJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
