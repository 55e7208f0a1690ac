package fetch

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"golang.org/x/text/language"
)

// Languages served by the feed, in refresh order.
var Languages = []string{"zh-Hans", "en", "ja", "zh-Hant"}

var (
	supportedTags = []language.Tag{
		language.MustParse("zh-Hans"),
		language.English,
		language.Japanese,
		language.MustParse("zh-Hant"),
	}
	languageMatcher = language.NewMatcher(supportedTags)
)

// NormalizeLanguage maps a caller-supplied language tag onto one of
// Languages. Matching is case-insensitive.
func NormalizeLanguage(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, l := range Languages {
		if strings.EqualFold(s, l) {
			return l, nil
		}
	}

	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", common.ErrUnsupportedLanguage, s)
	}
	_, idx, conf := languageMatcher.Match(tag)
	if conf < language.High {
		return "", fmt.Errorf("%w: %q", common.ErrUnsupportedLanguage, s)
	}
	return Languages[idx], nil
}
