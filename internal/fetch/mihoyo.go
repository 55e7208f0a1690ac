package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/timex"
	"github.com/tidwall/gjson"
)

const mihoyoTimeLayout = "2006-01-02 15:04:05"

// MihoyoFetcher reads the getAnnList / getAnnContent pair.
type MihoyoFetcher struct {
	client *Client
}

func NewMihoyoFetcher(c *Client) *MihoyoFetcher {
	return &MihoyoFetcher{client: c}
}

func (f *MihoyoFetcher) Fetch(ctx context.Context, src Source, language string) (*Bundle, error) {
	locale := src.Locale(language)

	params := url.Values{}
	for k, v := range src.Params {
		params.Set(k, v)
	}
	params.Set("lang", locale)

	listBody, err := f.client.Get(ctx, src.ListURL, params)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope(listBody, "data.list"); err != nil {
		return nil, fmt.Errorf("%w: %s list: %w", common.ErrFetchFailed, src.Game, err)
	}

	contentBody, err := f.client.Get(ctx, src.ContentURL, params)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope(contentBody, "data.list", "data.pic_list"); err != nil {
		return nil, fmt.Errorf("%w: %s content: %w", common.ErrFetchFailed, src.Game, err)
	}

	list := gjson.ParseBytes(listBody)
	content := gjson.ParseBytes(contentBody)

	return NewBundle(src.Game, language, locale,
		mihoyoGroups(list.Get("data.list")),
		mihoyoPicGroups(list.Get("data.pic_list")),
		mihoyoContents(content.Get("data.list")),
		mihoyoContents(content.Get("data.pic_list")),
	), nil
}

// checkEnvelope validates the common {retcode, message, data} wrapper.
func checkEnvelope(body []byte, arrays ...string) error {
	if !gjson.ValidBytes(body) {
		return errors.New("invalid json")
	}
	if rc := gjson.GetBytes(body, "retcode"); rc.Exists() && rc.Int() != 0 {
		return fmt.Errorf("retcode %d: %s", rc.Int(), gjson.GetBytes(body, "message").String())
	}
	for _, p := range arrays {
		if !gjson.GetBytes(body, p).IsArray() {
			return fmt.Errorf("missing %s", p)
		}
	}
	return nil
}

func mihoyoGroups(list gjson.Result) []Group {
	var groups []Group
	list.ForEach(func(_, g gjson.Result) bool {
		typeID := int(g.Get("type_id").Int())
		group := Group{TypeID: typeID, Label: g.Get("type_label").String()}
		g.Get("list").ForEach(func(_, s gjson.Result) bool {
			group.Stubs = append(group.Stubs, mihoyoStub(s, typeID))
			return true
		})
		groups = append(groups, group)
		return true
	})
	return groups
}

// pic_list nests one more level: pic_list[].type_list[].list[].
func mihoyoPicGroups(list gjson.Result) []Group {
	var groups []Group
	list.ForEach(func(_, outer gjson.Result) bool {
		outer.Get("type_list").ForEach(func(_, g gjson.Result) bool {
			typeID := int(g.Get("type_id").Int())
			group := Group{TypeID: typeID, Label: g.Get("type_label").String()}
			g.Get("list").ForEach(func(_, s gjson.Result) bool {
				group.Stubs = append(group.Stubs, mihoyoStub(s, typeID))
				return true
			})
			groups = append(groups, group)
			return true
		})
		return true
	})
	return groups
}

func mihoyoStub(s gjson.Result, typeID int) Stub {
	return Stub{
		ID:       s.Get("ann_id").String(),
		Title:    s.Get("title").String(),
		Subtitle: s.Get("subtitle").String(),
		Banner:   s.Get("banner").String(),
		Image:    s.Get("img").String(),
		Tag:      s.Get("tag_label").String(),
		TypeID:   typeID,
		Start:    parseStubTime(s.Get("start_time").String()),
		End:      parseStubTime(s.Get("end_time").String()),
		Raw:      json.RawMessage(s.Raw),
	}
}

func mihoyoContents(list gjson.Result) map[string]Content {
	m := make(map[string]Content)
	list.ForEach(func(_, c gjson.Result) bool {
		id := c.Get("ann_id").String()
		m[id] = Content{
			ID:       id,
			Title:    c.Get("title").String(),
			Subtitle: c.Get("subtitle").String(),
			Body:     c.Get("content").String(),
			Banner:   c.Get("banner").String(),
			Image:    c.Get("img").String(),
			Raw:      json.RawMessage(c.Raw),
		}
		return true
	})
	return m
}

func parseStubTime(s string) time.Time {
	t, err := time.ParseInLocation(mihoyoTimeLayout, s, timex.ChinaStandardTime)
	if err != nil {
		return time.Time{}
	}
	return t
}
