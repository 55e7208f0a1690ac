package parse

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var tagRe = regexp.MustCompile(`(?s)<.*?>`)

// StripTags removes markup from s and trims the result.
func StripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

// Document parses an HTML fragment. It never returns nil.
func Document(html string) *goquery.Selection {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &goquery.Selection{}
	}
	return doc.Selection
}

// FindLabel returns the innermost element whose text contains one of the
// labels. Labels are tried in order.
func FindLabel(root *goquery.Selection, labels ...string) *goquery.Selection {
	for _, label := range labels {
		has := func(_ int, s *goquery.Selection) bool {
			return strings.Contains(s.Text(), label)
		}
		found := root.Find("*").FilterFunction(func(i int, s *goquery.Selection) bool {
			return has(i, s) && s.Children().FilterFunction(has).Length() == 0
		}).First()
		if found.Length() > 0 {
			return found
		}
	}
	return root.Slice(0, 0)
}

// NextAfter returns the first element matching selector that follows sel
// in document order, excluding sel's own descendants.
func NextAfter(sel *goquery.Selection, selector string) *goquery.Selection {
	for cur := sel.First(); cur.Length() > 0; cur = cur.Parent() {
		var found *goquery.Selection
		cur.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
			if sib.Is(selector) {
				found = sib
				return false
			}
			if f := sib.Find(selector).First(); f.Length() > 0 {
				found = f
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return sel.Slice(0, 0)
}

// Text returns the trimmed, whitespace-collapsed text of sel.
func Text(sel *goquery.Selection) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(sel.Text(), " "))
}

// FirstImage returns the src of the first <img> in html.
func FirstImage(html string) string {
	src, _ := Document(html).Find("img").First().Attr("src")
	return src
}
