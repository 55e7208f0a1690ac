// Package fetch retrieves raw announcement payloads from publisher backends
// and reduces them to a publisher-neutral Bundle.
package fetch

import (
	"context"
	"encoding/json"
	"time"
)

// Fetcher retrieves one (game, language) rendering from a publisher.
// All failures are reported as errors wrapping common.ErrFetchFailed.
type Fetcher interface {
	Fetch(ctx context.Context, src Source, language string) (*Bundle, error)
}

// Stub is a lightweight list entry prior to content resolution.
// Zero Start/End mean the publisher did not provide a timestamp.
type Stub struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Subtitle string          `json:"subtitle,omitempty"`
	Banner   string          `json:"banner,omitempty"`
	Image    string          `json:"img,omitempty"`
	Tag      string          `json:"tag,omitempty"`
	TypeID   int             `json:"type_id,omitempty"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Group is a categorised list of stubs, as the publisher groups them.
type Group struct {
	TypeID int    `json:"type_id"`
	Label  string `json:"label"`
	Stubs  []Stub `json:"stubs"`
}

// Content is the full body for one stub.
type Content struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Subtitle string          `json:"subtitle,omitempty"`
	Body     string          `json:"body"`
	Banner   string          `json:"banner,omitempty"`
	Image    string          `json:"img,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Bundle is the fetch result for one (game, language) pair.
//
// Canonical holds the reference-locale rendering of the same data. It may
// point to the bundle itself when the requested language is canonical, and
// it is an empty bundle when the reference fetch failed.
type Bundle struct {
	Game        string             `json:"game"`
	Language    string             `json:"language"`
	Locale      string             `json:"locale"`
	Groups      []Group            `json:"groups"`
	PicGroups   []Group            `json:"pic_groups"`
	Contents    map[string]Content `json:"contents"`
	PicContents map[string]Content `json:"pic_contents"`
	Canonical   *Bundle            `json:"-"`

	stubs    map[string]Stub
	picStubs map[string]Stub
}

// NewBundle assembles a bundle and builds its identifier index.
func NewBundle(game, language, locale string, groups, picGroups []Group, contents, picContents map[string]Content) *Bundle {
	b := &Bundle{
		Game:        game,
		Language:    language,
		Locale:      locale,
		Groups:      groups,
		PicGroups:   picGroups,
		Contents:    contents,
		PicContents: picContents,
	}
	b.stubs = indexStubs(groups)
	b.picStubs = indexStubs(picGroups)
	return b
}

// EmptyBundle is used in place of a reference rendering that could not be
// fetched.
func EmptyBundle(game, language, locale string) *Bundle {
	return NewBundle(game, language, locale, nil, nil, map[string]Content{}, map[string]Content{})
}

func indexStubs(groups []Group) map[string]Stub {
	idx := make(map[string]Stub)
	for _, g := range groups {
		for _, s := range g.Stubs {
			if _, ok := idx[s.ID]; !ok {
				idx[s.ID] = s
			}
		}
	}
	return idx
}

// Stub returns the list stub with the given identifier.
func (b *Bundle) Stub(id string) (Stub, bool) {
	if b == nil {
		return Stub{}, false
	}
	s, ok := b.stubs[id]
	return s, ok
}

// PicStub returns the picture-list stub with the given identifier.
func (b *Bundle) PicStub(id string) (Stub, bool) {
	if b == nil {
		return Stub{}, false
	}
	s, ok := b.picStubs[id]
	return s, ok
}

// Content returns the body for a list stub.
func (b *Bundle) Content(id string) (Content, bool) {
	if b == nil {
		return Content{}, false
	}
	c, ok := b.Contents[id]
	return c, ok
}

// PicContent returns the body for a picture-list stub.
func (b *Bundle) PicContent(id string) (Content, bool) {
	if b == nil {
		return Content{}, false
	}
	c, ok := b.PicContents[id]
	return c, ok
}

// Empty reports whether the bundle carries no stubs at all.
func (b *Bundle) Empty() bool {
	return b == nil || (len(b.stubs) == 0 && len(b.picStubs) == 0)
}

// Reference returns the bundle whose lists drive parsing: the canonical one
// when it has data, the bundle itself otherwise.
func (b *Bundle) Reference() *Bundle {
	if b.Canonical != nil && !b.Canonical.Empty() {
		return b.Canonical
	}
	return b
}

// Group returns the first list group with the given label.
func (b *Bundle) Group(label string) (Group, bool) {
	for _, g := range b.Groups {
		if g.Label == label {
			return g, true
		}
	}
	return Group{}, false
}
