package parse

import (
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/timex"
	"golang.org/x/text/width"
)

var timeLayouts = []string{
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
}

var (
	parenRe    = regexp.MustCompile(`\([^)]*\)`)
	timeJunkRe = regexp.MustCompile(`[^0-9/ :]`)
	spacesRe   = regexp.MustCompile(`\s+`)
)

// NormalizeTime folds full-width glyphs, drops parenthesised notes such as
// "(server time)", replaces the date glyphs and leaves "YYYY/M/D hh:mm[:ss]".
func NormalizeTime(s string) string {
	s = width.Narrow.String(s)
	s = parenRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("年", "/", "月", "/", "日", " ", "-", "/").Replace(s)
	s = timeJunkRe.ReplaceAllString(s, " ")
	s = spacesRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, " /", "/")
	s = strings.ReplaceAll(s, "/ ", "/")
	return strings.Trim(s, " /:")
}

// ParseTime parses a publisher time string in China Standard Time. It
// reports false when no accepted layout matches.
func ParseTime(s string) (time.Time, bool) {
	n := NormalizeTime(s)
	if n == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, n, timex.ChinaStandardTime); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SplitRange splits "start ~ end" style ranges. "~" is preferred, then a
// spaced dash, then a bare dash.
func SplitRange(s string) (start, end string, ok bool) {
	s = strings.ReplaceAll(width.Narrow.String(s), "〜", "~")
	for _, sep := range []string{"~", " - ", "-"} {
		if before, after, found := strings.Cut(s, sep); found {
			return strings.TrimSpace(before), strings.TrimSpace(after), true
		}
	}
	return strings.TrimSpace(s), "", false
}

// ResolveTime parses raw, substituting the version start time when raw
// refers to the new version instead of a date.
func (st *State) ResolveTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if strings.Contains(raw, "版本更新后") || (st.VersionNow != "" && strings.Contains(raw, st.VersionNow+"版本")) {
		return st.VersionBegin
	}
	t, _ := ParseTime(raw)
	return t
}
