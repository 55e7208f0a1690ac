// Package starrail parses Honkai: Star Rail announcement bundles.
package starrail

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/fetch"
	"github.com/dmitrijs2005/annfeed/internal/parse"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

const groupNotice = "公告"

// Rules classifies canonical titles. Warp banners only appear in the
// picture list.
var Rules = parse.Classifier{
	{Category: models.CategoryVersion, AnyOf: []string{"版本更新说明"}},
	{Category: models.CategoryGacha, AnyOf: []string{"跃迁"}},
	{
		Category: models.CategoryEvent,
		AnyOf:    []string{"等奖励"},
		NoneOf:   []string{"模拟宇宙", "礼包", "纪行", "限时折扣", "任务", "音乐"},
	},
}

var (
	eventTimeRe  = regexp.MustCompile(`(?s)<h1[^>]*>(?:活动时间|限时活动期)</h1>\s*<p[^>]*>(.*?)</p>`)
	gachaTimeRe  = regexp.MustCompile(`时间为(.*?)，包含如下内容`)
	escapedTagRe = regexp.MustCompile(`&lt;.*?&gt;`)
	warpNameRe   = regexp.MustCompile(`<h1[^>]*>「([^」]+)」[^<]*活动跃迁</h1>`)
	characterRe  = regexp.MustCompile(`限定5星角色「([^（」]+)`)
	lightConeRe  = regexp.MustCompile(`限定5星光锥「([^（」]+)`)
)

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Game() string {
	return fetch.GameStarRail
}

func (p *Parser) Parse(b *fetch.Bundle, language string) []models.Announcement {
	if b == nil {
		return nil
	}
	canonical := language == parse.CanonicalLanguage
	st := &parse.State{}
	col := parse.NewCollector(p.Game(), language)

	notices := parse.Candidates(b, false, parse.Labelled(groupNotice))
	pics := parse.Candidates(b, true, nil)

	for _, c := range notices {
		if cat, _ := Rules.Classify(c.ZHTitle, "", c.Ref.Tag); cat != models.CategoryVersion {
			continue
		}
		st.SetVersion(c.ZHTitle, c.Ref.Start)
		if !c.HasTarget {
			continue
		}
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

	col.Pass()
	for i, list := range [][]parse.Candidate{notices, pics} {
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
	for _, c := range pics {
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
		col.Add(parse.Record{
			ExternalID: c.Ref.ID,
			Title:      title,
			Content:    parse.RawJSON(c.Content.Raw),
			Banner:     parse.FirstNonEmpty(c.Banner(true), c.ZH.Image),
			Start:      parse.FirstNonZero(gachaStart(c.ZH.Body, st), c.Ref.Start),
			End:        c.Ref.End,
			Category:   models.CategoryGacha,
		}, false)
	}

	return col.Records()
}

func cleanPeriod(s string) string {
	return parse.StripTags(escapedTagRe.ReplaceAllString(s, ""))
}

// eventWindow reads the paragraph following the "event period" heading.
func eventWindow(body string, st *parse.State) (start, end time.Time) {
	m := eventTimeRe.FindStringSubmatch(body)
	if m == nil {
		return
	}
	s, e, ok := parse.SplitRange(cleanPeriod(m[1]))
	start = st.ResolveTime(s)
	if ok && !start.IsZero() {
		end = st.ResolveTime(e)
	}
	return
}

// gachaStart reads the opening time of a warp from its "时间为 ..." sentence.
// Warp end times come from the list stub.
func gachaStart(body string, st *parse.State) time.Time {
	m := gachaTimeRe.FindStringSubmatch(body)
	if m == nil {
		return time.Time{}
	}
	s, _, _ := parse.SplitRange(cleanPeriod(m[1]))
	return st.ResolveTime(s)
}

func gachaTitle(zhTitle, body string) string {
	if body == "" {
		if strings.Contains(zhTitle, "限定") && (strings.Contains(zhTitle, "角色") || strings.Contains(zhTitle, "光锥")) {
			return "【限定跃迁】" + zhTitle
		}
		return "【跃迁】" + zhTitle
	}

	var warps []string
	for _, m := range warpNameRe.FindAllStringSubmatch(body, -1) {
		name := m[1]
		switch {
		case !strings.Contains(name, "•"):
			warps = append(warps, name)
		case strings.Contains(name, "铭心之萃"):
			warps = append(warps, strings.Split(name, "•")[0])
		}
	}
	warps = parse.Dedup(warps)

	featured := append(submatches(characterRe, body), submatches(lightConeRe, body)...)

	prefix := "【跃迁】"
	if len(warps) > 0 {
		prefix = fmt.Sprintf("【%s】", strings.Join(warps, ", "))
	}
	if len(featured) == 0 {
		return prefix + "跃迁活动"
	}
	return prefix + "角色、光锥跃迁: " + strings.Join(featured, ", ")
}

func submatches(re *regexp.Regexp, s string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return parse.Dedup(out)
}
