// Package models defines the records persisted by the feed service and the
// views it returns to callers.
package models

import (
	"time"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/timex"
)

// Category is the kind of announcement.
type Category string

const (
	CategoryVersion Category = "version"
	CategoryEvent   Category = "event"
	CategoryGacha   Category = "gacha"
)

// Categories accepted by the HTTP filter. Update and maintenance are never
// produced by the parsers but are valid filter values.
var FilterCategories = map[string]struct{}{
	string(CategoryVersion): {},
	string(CategoryEvent):   {},
	string(CategoryGacha):   {},
	"update":                {},
	"maintenance":           {},
}

// Announcement is one normalised record as produced by a parser and stored
// under (Game, Language, ExternalID).
type Announcement struct {
	ID          int64
	UUID        string
	Game        string
	Language    string
	ExternalID  string
	Title       string
	Content     string
	BannerImage string
	StartTime   *time.Time
	EndTime     *time.Time
	Category    Category
	ContentHash []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AnnouncementView is the externally visible shape of an announcement.
type AnnouncementView struct {
	ID          int64    `json:"id"`
	OfficialID  string   `json:"official_id"`
	Title       string   `json:"title"`
	BannerImage string   `json:"banner_img"`
	StartTime   *string  `json:"start_time"`
	EndTime     *string  `json:"end_time"`
	Category    Category `json:"type"`
}

// View converts a stored record into its external representation.
// Times are rendered in China Standard Time.
func (a *Announcement) View() AnnouncementView {
	return AnnouncementView{
		ID:          a.ID,
		OfficialID:  a.ExternalID,
		Title:       a.Title,
		BannerImage: a.BannerImage,
		StartTime:   formatTime(a.StartTime),
		EndTime:     formatTime(a.EndTime),
		Category:    a.Category,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.In(timex.ChinaStandardTime).Format(common.TimeLayout)
	return &s
}
