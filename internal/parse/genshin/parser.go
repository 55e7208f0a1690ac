// Package genshin parses Genshin Impact announcement bundles.
package genshin

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dmitrijs2005/annfeed/internal/fetch"
	"github.com/dmitrijs2005/annfeed/internal/parse"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

const (
	groupGame  = "游戏公告"
	groupEvent = "活动公告"
)

// Rules classifies canonical titles.
var Rules = parse.Classifier{
	{Category: models.CategoryVersion, AnyOf: []string{"版本更新说明"}},
	{Category: models.CategoryGacha, AnyOf: []string{"祈愿"}, Tags: []string{"扭蛋"}},
	{
		Category: models.CategoryEvent,
		AnyOf:    []string{"时限内", "活动"},
		NoneOf:   []string{"魔神任务", "礼包", "纪行", "铸境研炼", "七圣召唤", "限时折扣"},
	},
}

var (
	dateRe   = regexp.MustCompile(`\d{4}/\d{2}/\d{2} \d{2}:\d{2}`)
	weaponRe = regexp.MustCompile(`「[^」]*·([^」]*)」`)
	wishRe   = regexp.MustCompile(`「([^」]+)」祈愿`)
	charRe   = regexp.MustCompile(`·(.*?)[(（]`)
)

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Game() string {
	return fetch.GameGenshin
}

func (p *Parser) Parse(b *fetch.Bundle, language string) []models.Announcement {
	if b == nil {
		return nil
	}
	canonical := language == parse.CanonicalLanguage
	st := &parse.State{}
	col := parse.NewCollector(p.Game(), language)

	for _, c := range parse.Candidates(b, false, parse.Labelled(groupGame)) {
		if cat, ok := Rules.Classify(c.ZHTitle, "", c.Ref.Tag); !ok || cat != models.CategoryVersion {
			continue
		}
		st.SetVersionNumber(c.ZHTitle)
		if !c.HasTarget {
			continue
		}
		st.VersionBegin = c.Ref.Start
		title := parse.StripTags(c.Target.Title)
		if canonical {
			title = parse.FirstNonEmpty(st.VersionNow, c.ZHTitle)
		}
		col.Add(parse.Record{
			ExternalID: c.Ref.ID,
			Title:      title,
			Content:    parse.RawJSON(c.Target.Raw),
			Banner:     c.Banner(false),
			Start:      c.Ref.Start,
			End:        c.Ref.End,
			Category:   models.CategoryVersion,
		}, false)
		break
	}

	events := parse.Candidates(b, false, parse.Labelled(groupEvent))

	col.Pass()
	for _, c := range events {
		if !c.HasZH || !c.HasTarget {
			continue
		}
		if cat, ok := Rules.Classify(c.ZHTitle, c.ZH.Body, c.Ref.Tag); !ok || cat != models.CategoryEvent {
			continue
		}
		start, end := eventWindow(c.ZH.Body, st)
		col.Add(parse.Record{
			ExternalID: c.Ref.ID,
			Title:      parse.StripTags(c.Target.Title),
			Content:    parse.RawJSON(c.Content.Raw),
			Banner:     c.Banner(false),
			Start:      parse.FirstNonZero(start, c.Ref.Start),
			End:        parse.FirstNonZero(end, c.Ref.End),
			Category:   models.CategoryEvent,
		}, true)
	}

	col.Pass()
	for _, c := range events {
		if !c.HasZH || !c.HasTarget {
			continue
		}
		if cat, ok := Rules.Classify(c.ZHTitle, c.ZH.Body, c.Ref.Tag); !ok || cat != models.CategoryGacha {
			continue
		}
		title := parse.StripTags(c.Target.Title)
		if canonical {
			title = gachaTitle(c.ZHTitle, c.ZH.Body)
		}
		start, end := gachaWindow(c.ZH.Body, strings.Contains(c.ZHTitle, "集录"), st)
		col.Add(parse.Record{
			ExternalID: c.Ref.ID,
			Title:      title,
			Content:    parse.RawJSON(c.Content.Raw),
			Banner:     parse.FirstNonEmpty(c.Target.Banner, c.Ref.Banner, c.ZH.Banner),
			Start:      parse.FirstNonZero(start, c.Ref.Start),
			End:        parse.FirstNonZero(end, c.Ref.End),
			Category:   models.CategoryGacha,
		}, false)
	}

	return col.Records()
}

// eventWindow reads the event period from the canonical body. The start
// wins from a version reference, then the first dated line, then the
// labelled period paragraph; the end only comes from the labelled period.
func eventWindow(body string, st *parse.State) (start, end time.Time) {
	if body == "" {
		return
	}
	var period string
	if label := parse.FindLabel(parse.Document(body), "〓获取奖励时限〓", "〓活动时间〓"); label.Length() > 0 {
		period = parse.Text(parse.NextAfter(label, "p"))
	}
	s, e, hasEnd := parse.SplitRange(period)

	switch {
	case strings.Contains(body, "版本更新后"):
		start = st.VersionBegin
	case dateRe.MatchString(body):
		start, _ = parse.ParseTime(dateRe.FindString(body))
	case period != "":
		start = st.ResolveTime(s)
	}
	if !start.IsZero() && hasEnd {
		end = st.ResolveTime(e)
	}
	return
}

// gachaWindow reads the wish period from the table cell spanning the
// banner rows.
func gachaWindow(body string, collection bool, st *parse.State) (start, end time.Time) {
	if body == "" {
		return
	}
	doc := parse.Document(body)

	if collection {
		td := doc.Find("td[rowspan]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			n, err := strconv.Atoi(s.AttrOr("rowspan", ""))
			return err == nil && n >= 3
		}).First()
		if td.Length() == 0 {
			return
		}
		if t := td.Find("t.t_lc").First(); t.Length() > 0 {
			return st.ResolveTime(parse.Text(t)), time.Time{}
		}
		if m := dateRe.FindString(td.Text()); m != "" {
			start, _ = parse.ParseTime(m)
		}
		return
	}

	for _, rows := range []string{"3", "5", "9"} {
		td := doc.Find(`td[rowspan="` + rows + `"]`).First()
		if td.Length() == 0 {
			continue
		}
		var parts []string
		td.Children().Filter("p, t").Each(func(_ int, c *goquery.Selection) {
			if span := c.Find("span").First(); span.Length() > 0 {
				parts = append(parts, parse.Text(span))
				return
			}
			parts = append(parts, parse.Text(c))
		})
		if len(parts) == 0 {
			continue
		}
		s, e, _ := parse.SplitRange(strings.Join(parts, " "))
		return st.ResolveTime(s), st.ResolveTime(e)
	}
	return
}

func gachaTitle(zhTitle, body string) string {
	if body == "" {
		switch {
		case strings.Contains(zhTitle, "神铸赋形"):
			return "【神铸赋形】" + zhTitle
		case strings.Contains(zhTitle, "集录"):
			return "【集录祈愿】" + zhTitle
		default:
			return "【角色祈愿】" + zhTitle
		}
	}

	switch {
	case strings.Contains(zhTitle, "神铸赋形"):
		var names []string
		for _, m := range weaponRe.FindAllStringSubmatch(zhTitle, -1) {
			names = append(names, strings.TrimSpace(m[1]))
		}
		return "【神铸赋形】武器祈愿: " + strings.Join(parse.Dedup(names), ", ")
	case strings.Contains(zhTitle, "集录"):
		return fmt.Sprintf("【%s】集录祈愿", wishName(zhTitle, "集录祈愿"))
	}

	var char string
	parse.Document(body).Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := parse.Text(p)
		if m := charRe.FindStringSubmatch(text); m != nil {
			char = strings.TrimSpace(m[1])
			return false
		}
		return true
	})
	if char == "" {
		return zhTitle
	}
	return fmt.Sprintf("【%s】角色祈愿: %s", wishName(zhTitle, "角色祈愿"), char)
}

func wishName(title, fallback string) string {
	if m := wishRe.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return fallback
}
