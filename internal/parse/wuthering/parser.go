// Package wuthering parses Wuthering Waves announcement bundles.
package wuthering

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dmitrijs2005/annfeed/internal/fetch"
	"github.com/dmitrijs2005/annfeed/internal/parse"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

// Rules classifies canonical titles.
var Rules = parse.Classifier{
	{Category: models.CategoryVersion, AnyOf: []string{"版本内容说明"}},
	{Category: models.CategoryGacha, AnyOf: []string{"唤取"}},
	{
		Category: models.CategoryEvent,
		Suffix:   "活动",
		NoneOf:   []string{"感恩答谢", "签到", "回归", "数据回顾"},
	},
}

var (
	quotedRe  = regexp.MustCompile(`「([^」]+)」`)
	bracketRe = regexp.MustCompile(`\[([^\]]+)\]`)
)

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Game() string {
	return fetch.GameWuthering
}

func (p *Parser) Parse(b *fetch.Bundle, language string) []models.Announcement {
	if b == nil {
		return nil
	}
	canonical := language == parse.CanonicalLanguage
	st := &parse.State{}
	col := parse.NewCollector(p.Game(), language)

	// Only the head of the game list is the current version notice.
	if game := parse.Candidates(b, false, parse.Labelled(fetch.KuroGroupGame)); len(game) > 0 {
		c := game[0]
		if cat, _ := Rules.Classify(c.Ref.Title, "", ""); cat == models.CategoryVersion {
			st.SetVersion(c.Ref.Title, c.Ref.Start)
			target := targetStub(c)
			title := target.Title
			if canonical {
				title = parse.FirstNonEmpty(st.VersionNow, c.Ref.Title)
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
		}
	}

	activities := parse.Candidates(b, false, parse.Labelled(fetch.KuroGroupActivity))

	for _, want := range []models.Category{models.CategoryEvent, models.CategoryGacha} {
		col.Pass()
		for _, c := range activities {
			// Classified on the short tab title, not the content headline.
			if cat, _ := Rules.Classify(c.Ref.Title, "", ""); cat != want {
				continue
			}
			target := targetStub(c)
			content := c.Content
			if content.ID == "" {
				content = c.ZH
			}

			title := target.Title
			if want == models.CategoryGacha && canonical {
				title = gachaTitle(c.Ref.Title, content)
			}
			start, end := window(c.ZH.Body, st)
			col.Add(parse.Record{
				ExternalID: c.Ref.ID,
				Title:      title,
				Content:    parse.RawJSON(content.Raw),
				Banner:     parse.FirstNonEmpty(target.Banner, c.Ref.Banner),
				Start:      parse.FirstNonZero(start, c.Ref.Start),
				End:        parse.FirstNonZero(end, c.Ref.End),
				Category:   want,
			}, want == models.CategoryEvent)
		}
	}

	return col.Records()
}

func targetStub(c parse.Candidate) fetch.Stub {
	if c.HasTarget {
		return c.Target
	}
	return c.Ref
}

// window reads the line after the ✦活动时间✦ marker. Both ends must be
// present for the period to be used.
func window(body string, st *parse.State) (start, end time.Time) {
	if body == "" {
		return
	}
	lines := parse.Document(body).Find(`div[data-line="true"]`)
	lines.EachWithBreak(func(i int, div *goquery.Selection) bool {
		if !strings.Contains(div.Text(), "✦活动时间✦") {
			return true
		}
		next := lines.Eq(i + 1)
		if next.Length() == 0 {
			return false
		}
		s, e, ok := parse.SplitRange(parse.Text(next))
		if ok && s != "" && e != "" {
			start, end = st.ResolveTime(s), st.ResolveTime(e)
		}
		return false
	})
	return
}

func gachaTitle(zhTitle string, content fetch.Content) string {
	kind := "角色"
	if strings.Contains(zhTitle, "浮声") || strings.Contains(zhTitle, "武器") || strings.Contains(zhTitle, "音感仪") {
		kind = "武器"
	}

	if strings.Contains(zhTitle, "周年") && content.Title != "" {
		if title, ok := anniversaryTitle(kind, content); ok {
			return title
		}
	}

	if m := quotedRe.FindStringSubmatch(content.Title); m != nil {
		banner := ""
		if b := bracketRe.FindStringSubmatch(content.Title); b != nil {
			banner = b[1]
		}
		return fmt.Sprintf("【%s】%s唤取: %s", banner, kind, m[1])
	}

	switch {
	case strings.Contains(zhTitle, "共鸣者"):
		return "【角色唤取】" + zhTitle
	case strings.Contains(zhTitle, "音感仪"):
		return "【武器唤取】" + zhTitle
	}
	return zhTitle
}

// anniversaryTitle lists every featured five-star from the rerun banner
// body: 5星角色「A」「B」、...
func anniversaryTitle(kind string, content fetch.Content) (string, bool) {
	marker := "5星" + kind + "「"
	_, rest, found := strings.Cut(content.Body, marker)
	if !found {
		return "", false
	}
	names, _, found := strings.Cut(rest, "」、")
	if !found {
		return "", false
	}

	var event string
	if parts := strings.Split(content.Title, "・"); len(parts) > 1 {
		r := []rune(parts[1])
		if len(r) > 0 {
			event = string(r[:len(r)-1])
		}
	}
	return fmt.Sprintf("【周年・%s】%s唤取: %s", event, kind, strings.Join(strings.Split(names, "」「"), ", ")), true
}
