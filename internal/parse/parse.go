// Package parse holds the building blocks shared by the per-game content
// parsers: a table-driven classifier, the record collector, time
// normalisation and markup helpers.
package parse

import (
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/fetch"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
	"github.com/google/uuid"
)

// CanonicalLanguage is the reference language every parser reads
// classification and time windows from.
const CanonicalLanguage = "zh-Hans"

// Parser turns a resolved bundle into normalised announcement records.
// Implementations keep per-call state only and are safe for concurrent use.
type Parser interface {
	Game() string
	Parse(b *fetch.Bundle, language string) []models.Announcement
}

// Rule is one row of a classification table. A title qualifies when it
// contains any of AnyOf (or the stub tag is one of Tags), all of AllOf,
// none of NoneOf and ends with Suffix. BodyNoneOf rejects on body text.
type Rule struct {
	Category   models.Category
	AnyOf      []string
	Tags       []string
	AllOf      []string
	NoneOf     []string
	Suffix     string
	BodyNoneOf []string
}

func (r Rule) match(title, body, tag string) bool {
	if len(r.AnyOf) > 0 || len(r.Tags) > 0 {
		if !containsAny(title, r.AnyOf) && !oneOf(tag, r.Tags) {
			return false
		}
	}
	for _, kw := range r.AllOf {
		if !strings.Contains(title, kw) {
			return false
		}
	}
	if containsAny(title, r.NoneOf) {
		return false
	}
	if r.Suffix != "" && !strings.HasSuffix(title, r.Suffix) {
		return false
	}
	return !containsAny(body, r.BodyNoneOf)
}

// Classifier evaluates rules in order; the first match wins.
type Classifier []Rule

// Classify returns the category of a canonical-language title, or false
// when the announcement should be rejected.
func (c Classifier) Classify(title, body, tag string) (models.Category, bool) {
	for _, r := range c {
		if r.match(title, body, tag) {
			return r.Category, true
		}
	}
	return "", false
}

// Only returns the rules for one category, preserving order.
func (c Classifier) Only(cat models.Category) Classifier {
	var out Classifier
	for _, r := range c {
		if r.Category == cat {
			out = append(out, r)
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func oneOf(s string, set []string) bool {
	if s == "" {
		return false
	}
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

var versionRe = regexp.MustCompile(`\d+\.\d+`)

// State is the running state of one Parse call.
type State struct {
	VersionNow   string
	VersionBegin time.Time
}

// SetVersion records the version number found in title together with the
// version start time.
func (s *State) SetVersion(title string, begin time.Time) {
	s.SetVersionNumber(title)
	s.VersionBegin = begin
}

// SetVersionNumber records the version number found in title, if any,
// leaving the version start time as is.
func (s *State) SetVersionNumber(title string) {
	if v := versionRe.FindString(title); v != "" {
		s.VersionNow = v
	}
}

// Record is a parser's output before identity and ownership are attached.
type Record struct {
	ExternalID string
	Title      string
	Content    string
	Banner     string
	Start      time.Time
	End        time.Time
	Category   models.Category
}

// Collector accumulates records for one (game, language) parse.
type Collector struct {
	game     string
	language string
	ids      map[string]struct{}
	titles   map[string]struct{}
	out      []models.Announcement
}

func NewCollector(game, language string) *Collector {
	return &Collector{
		game:     game,
		language: language,
		ids:      make(map[string]struct{}),
		titles:   make(map[string]struct{}),
	}
}

// Pass starts a new parse pass. Title de-duplication is scoped to a pass.
func (c *Collector) Pass() {
	c.titles = make(map[string]struct{})
}

// Add appends r unless it lacks an id or title, or its id was already
// collected. With uniqueTitle set a title seen earlier in the same pass is
// rejected as well. It reports whether the record was kept.
func (c *Collector) Add(r Record, uniqueTitle bool) bool {
	id := strings.TrimSpace(r.ExternalID)
	title := strings.TrimSpace(r.Title)
	if id == "" || title == "" {
		return false
	}
	if _, ok := c.ids[id]; ok {
		return false
	}
	if uniqueTitle {
		if _, ok := c.titles[title]; ok {
			return false
		}
		c.titles[title] = struct{}{}
	}
	c.ids[id] = struct{}{}

	// An inverted window keeps the end; the start is treated as unknown.
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		r.Start = time.Time{}
	}

	c.out = append(c.out, models.Announcement{
		UUID:        RecordUUID(id, title),
		Game:        c.game,
		Language:    c.language,
		ExternalID:  id,
		Title:       title,
		Content:     r.Content,
		BannerImage: r.Banner,
		StartTime:   timePtr(r.Start),
		EndTime:     timePtr(r.End),
		Category:    r.Category,
	})
	return true
}

// Records returns the collected records in insertion order.
func (c *Collector) Records() []models.Announcement {
	return c.out
}

// RecordUUID derives the stable name-based identifier of a record.
func RecordUUID(externalID, title string) string {
	return uuid.NewMD5(uuid.NameSpaceDNS, []byte(externalID+"-"+title)).String()
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// FirstNonZero returns the first non-zero time.
func FirstNonZero(ts ...time.Time) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

// FirstNonEmpty returns the first non-empty string.
func FirstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// Dedup removes repeated values, keeping the first occurrence.
func Dedup(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := ss[:0:0]
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
