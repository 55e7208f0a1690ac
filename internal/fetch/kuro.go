package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/logging"
	"github.com/dmitrijs2005/annfeed/internal/timex"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Group labels produced by KuroFetcher.
const (
	KuroGroupGame     = "game"
	KuroGroupActivity = "activity"
)

// KuroFetcher reads the notice index and then crawls one content document
// per activity.
type KuroFetcher struct {
	client  *Client
	limiter *rate.Limiter
	log     logging.Logger
}

// NewKuroFetcher builds a fetcher. A nil limiter disables crawl pacing.
func NewKuroFetcher(c *Client, limiter *rate.Limiter, log logging.Logger) *KuroFetcher {
	if log == nil {
		log = logging.Nop{}
	}
	return &KuroFetcher{client: c, limiter: limiter, log: log.With("module", "kuro")}
}

func (f *KuroFetcher) Fetch(ctx context.Context, src Source, language string) (*Bundle, error) {
	locale := src.Locale(language)

	body, err := f.client.Get(ctx, src.ListURL, nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s list: invalid json", common.ErrFetchFailed, src.Game)
	}
	list := gjson.ParseBytes(body)
	for _, key := range []string{KuroGroupGame, KuroGroupActivity} {
		if !list.Get(key).IsArray() {
			return nil, fmt.Errorf("%w: %s list: missing %s", common.ErrFetchFailed, src.Game, key)
		}
	}

	groups := []Group{
		{Label: KuroGroupGame, Stubs: kuroStubs(list.Get(KuroGroupGame), locale)},
		{Label: KuroGroupActivity, Stubs: kuroStubs(list.Get(KuroGroupActivity), locale)},
	}

	contents := make(map[string]Content)
	var crawlErr error
	list.Get(KuroGroupActivity).ForEach(func(_, item gjson.Result) bool {
		prefix := item.Get("contentPrefix.0").String()
		if prefix == "" {
			return true
		}
		id := item.Get("id").String()

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				crawlErr = err
				return false
			}
		}

		c, err := f.fetchContent(ctx, id, prefix+locale+".json")
		if err != nil {
			if ctx.Err() != nil {
				crawlErr = ctx.Err()
				return false
			}
			f.log.Debug(ctx, "content unavailable", "game", src.Game, "id", id, "error", err)
			return true
		}
		contents[id] = c
		return true
	})
	if crawlErr != nil {
		return nil, fmt.Errorf("%w: %s crawl: %w", common.ErrFetchFailed, src.Game, crawlErr)
	}

	return NewBundle(src.Game, language, locale, groups, nil, contents, map[string]Content{}), nil
}

func (f *KuroFetcher) fetchContent(ctx context.Context, id, target string) (Content, error) {
	body, err := f.client.Get(ctx, target, nil)
	if err != nil {
		return Content{}, err
	}
	if !gjson.ValidBytes(body) {
		return Content{}, errors.New("invalid json")
	}
	doc := gjson.ParseBytes(body)
	return Content{
		ID:    id,
		Title: doc.Get("textTitle").String(),
		Body:  doc.Get("textContent").String(),
		Raw:   json.RawMessage(body),
	}, nil
}

func kuroStubs(items gjson.Result, locale string) []Stub {
	var stubs []Stub
	items.ForEach(func(_, it gjson.Result) bool {
		stubs = append(stubs, Stub{
			ID:     it.Get("id").String(),
			Title:  localized(it.Get("tabTitle"), locale).String(),
			Banner: localized(it.Get("tabBanner"), locale).Get("0").String(),
			Start:  fromMillis(it.Get("startTimeMs").Int()),
			End:    fromMillis(it.Get("endTimeMs").Int()),
			Raw:    json.RawMessage(it.Raw),
		})
		return true
	})
	return stubs
}

// localized picks field[locale], falling back to the simplified Chinese
// value when the locale is missing or empty.
func localized(field gjson.Result, locale string) gjson.Result {
	v := field.Get(locale)
	if v.Exists() && v.String() != "" && v.String() != "[]" {
		return v
	}
	return field.Get("zh-Hans")
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).In(timex.ChinaStandardTime)
}
