// Package zenless parses Zenless Zone Zero announcement bundles.
package zenless

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dmitrijs2005/annfeed/internal/fetch"
	"github.com/dmitrijs2005/annfeed/internal/parse"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

const groupGame = "游戏公告"

// Event and signal search notices are listed under these type ids.
var eventTypes = parse.TypeIDs(3, 4)

// Rules classifies canonical titles.
var Rules = parse.Classifier{
	{Category: models.CategoryVersion, AllOf: []string{"更新说明", "版本"}},
	{Category: models.CategoryGacha, AnyOf: []string{"限时频段", "调频"}},
	{
		Category:   models.CategoryEvent,
		AnyOf:      []string{"活动说明", "活动公告"},
		NoneOf:     []string{"全新放送", "『嗯呢』从天降", "特别访客", "惊喜派送中"},
		BodyNoneOf: []string{"累计登录7天"},
	},
}

// W-Engine banners share the "调频说明" heading but are not named banners.
var engineBanners = []string{"喧哗奏鸣", "激荡谐振", "灿烂和声", "璀璨韵律"}

var (
	bannerNameRe = regexp.MustCompile(`「([^」]+)」调频(?:说明|活动)`)
	agentRe      = regexp.MustCompile(`限定S级代理人.*?<span[^>]*>\[([^(]+)(?:\([^)]*\))?\]</span>`)
	engineRe     = regexp.MustCompile(`限定S级音擎.*?<span[^>]*>\[([^(]+)(?:\([^)]*\))?\]</span>`)
	quotedRe     = regexp.MustCompile(`「([^」]+)」`)
)

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Game() string {
	return fetch.GameZenless
}

func (p *Parser) Parse(b *fetch.Bundle, language string) []models.Announcement {
	if b == nil {
		return nil
	}
	canonical := language == parse.CanonicalLanguage
	st := &parse.State{}
	col := parse.NewCollector(p.Game(), language)

	for _, c := range parse.Candidates(b, false, parse.Labelled(groupGame)) {
		if cat, _ := Rules.Classify(c.ZHTitle, "", c.Ref.Tag); cat != models.CategoryVersion {
			continue
		}
		st.SetVersion(c.ZHTitle, c.Ref.Start)
		target := c.Target
		if !c.HasTarget {
			target = c.Ref
		}
		title := parse.StripTags(target.Title)
		if canonical && st.VersionNow != "" {
			title = fmt.Sprintf("绝区零 %s 版本", st.VersionNow)
		}
		col.Add(parse.Record{
			ExternalID: c.Ref.ID,
			Title:      title,
			Content:    parse.RawJSON(target.Raw),
			Banner:     parse.FirstNonEmpty(target.Banner, c.Ref.Banner),
			Start:      c.Ref.Start,
			End:        c.Ref.End,
			Category:   models.CategoryVersion,
		}, false)
		break
	}

	lists := [][]parse.Candidate{
		parse.Candidates(b, false, eventTypes),
		parse.Candidates(b, true, nil),
	}

	col.Pass()
	for i, list := range lists {
		pic := i == 1
		for _, c := range list {
			if !c.HasZH || !c.HasTarget {
				continue
			}
			if cat, _ := Rules.Classify(c.ZHTitle, c.ZH.Body, c.Ref.Tag); cat != models.CategoryEvent {
				continue
			}
			start, end := eventWindow(c.ZH.Body, st)
			col.Add(parse.Record{
				ExternalID: c.Ref.ID,
				Title:      parse.StripTags(c.Target.Title),
				Content:    parse.RawJSON(c.Content.Raw),
				Banner:     c.Banner(pic),
				Start:      parse.FirstNonZero(start, c.Ref.Start),
				End:        parse.FirstNonZero(end, c.Ref.End),
				Category:   models.CategoryEvent,
			}, true)
		}
	}

	col.Pass()
	for i, list := range lists {
		pic := i == 1
		for _, c := range list {
			if !c.HasZH || !c.HasTarget {
				continue
			}
			if cat, _ := Rules.Classify(c.ZHTitle, c.ZH.Body, c.Ref.Tag); cat != models.CategoryGacha {
				continue
			}
			title := parse.StripTags(c.Target.Title)
			if canonical {
				title = gachaTitle(c.ZHTitle, c.ZH.Body)
			}
			banner := c.Banner(pic)
			if !pic {
				banner = parse.FirstNonEmpty(banner, parse.FirstImage(c.ZH.Body))
			}
			start, end := gachaWindow(c.ZH.Body, st)
			col.Add(parse.Record{
				ExternalID: c.Ref.ID,
				Title:      title,
				Content:    parse.RawJSON(c.Target.Raw),
				Banner:     banner,
				Start:      parse.FirstNonZero(start, c.Ref.Start),
				End:        parse.FirstNonZero(end, c.Ref.End),
				Category:   models.CategoryGacha,
			}, false)
		}
	}

	return col.Records()
}

// eventWindow reads the paragraph after the 【活动时间】 label.
func eventWindow(body string, st *parse.State) (start, end time.Time) {
	if body == "" {
		return
	}
	label := parse.Document(body).Find("p").FilterFunction(func(_ int, p *goquery.Selection) bool {
		return strings.Contains(p.Text(), "【活动时间】")
	}).First()
	if label.Length() == 0 {
		return
	}
	s, e, ok := parse.SplitRange(parse.Text(parse.NextAfter(label, "p")))
	if !ok {
		return
	}
	return st.ResolveTime(s), st.ResolveTime(e)
}

// gachaWindow reads the period cell of the first table: the first
// paragraph is the opening time, the last one the closing time.
func gachaWindow(body string, st *parse.State) (start, end time.Time) {
	if body == "" {
		return
	}
	rows := parse.Document(body).Find("table").First().Find("tr")
	if rows.Length() < 2 {
		return
	}
	cell := rows.Eq(1).Find("td[rowspan]").First()
	var texts []string
	cell.Find("p").Each(func(_ int, p *goquery.Selection) {
		texts = append(texts, parse.Text(p))
	})
	if len(texts) < 2 {
		return
	}
	return st.ResolveTime(texts[0]), st.ResolveTime(texts[len(texts)-1])
}

func gachaTitle(zhTitle, body string) string {
	var banners []string
	for _, m := range bannerNameRe.FindAllStringSubmatch(body, -1) {
		if !slices.Contains(engineBanners, m[1]) {
			banners = append(banners, m[1])
		}
	}
	banners = parse.Dedup(banners)

	var featured []string
	for _, re := range []*regexp.Regexp{agentRe, engineRe} {
		for _, m := range re.FindAllStringSubmatch(body, -1) {
			featured = append(featured, strings.TrimSpace(m[1]))
		}
	}
	featured = parse.Dedup(featured)

	if len(banners) > 0 && len(featured) > 0 {
		return fmt.Sprintf("【%s】代理人、音擎调频: %s", strings.Join(banners, ", "), strings.Join(featured, ", "))
	}
	if !strings.Contains(zhTitle, "限时频段") {
		return zhTitle
	}
	name := "限时频段"
	if m := quotedRe.FindStringSubmatch(zhTitle); m != nil {
		name = m[1]
	}
	return fmt.Sprintf("【%s】限时频段", name)
}
