package fetch

// Publisher identifies a family of backends sharing one API shape.
type Publisher string

const (
	PublisherMihoyo Publisher = "mihoyo"
	PublisherKuro   Publisher = "kuro"
)

const (
	GameGenshin   = "genshin"
	GameStarRail  = "starrail"
	GameZenless   = "zenless"
	GameWuthering = "wuthering"
)

// DefaultKuroListURL is the public notice index for Wuthering Waves.
const DefaultKuroListURL = "https://aki-gm-resources.aki-game.com/gamenotice/G152/76402e5b20be2c39f095a152090afddc/notice.json"

// Source is the static descriptor of one game's announcement backend.
type Source struct {
	Game       string
	Publisher  Publisher
	ListURL    string
	ContentURL string
	Params     map[string]string

	// CanonicalLanguage is the reference language, in request form.
	CanonicalLanguage string
	// Locales maps request languages to publisher locales. Languages not
	// listed are passed through unchanged.
	Locales map[string]string
}

// Locale returns the publisher locale for a request language.
func (s Source) Locale(language string) string {
	if l, ok := s.Locales[language]; ok {
		return l
	}
	return language
}

// IsCanonical reports whether language resolves to the reference locale.
func (s Source) IsCanonical(language string) bool {
	return s.Locale(language) == s.Locale(s.CanonicalLanguage)
}

var mihoyoLocales = map[string]string{
	"zh-Hans": "zh-cn",
	"zh-Hant": "zh-tw",
}

func mihoyoParams(game, biz, region string) map[string]string {
	return map[string]string{
		"game":      game,
		"game_biz":  biz,
		"bundle_id": biz,
		"level":     "1",
		"platform":  "pc",
		"region":    region,
		"uid":       "1",
	}
}

// DefaultSources returns the built-in game registry keyed by game id.
func DefaultSources(kuroListURL string) map[string]Source {
	if kuroListURL == "" {
		kuroListURL = DefaultKuroListURL
	}
	return map[string]Source{
		GameGenshin: {
			Game:              GameGenshin,
			Publisher:         PublisherMihoyo,
			ListURL:           "https://hk4e-ann-api.mihoyo.com/common/hk4e_cn/announcement/api/getAnnList",
			ContentURL:        "https://hk4e-ann-api.mihoyo.com/common/hk4e_cn/announcement/api/getAnnContent",
			Params:            mihoyoParams("hk4e", "hk4e_cn", "cn_gf01"),
			CanonicalLanguage: "zh-Hans",
			Locales:           mihoyoLocales,
		},
		GameStarRail: {
			Game:              GameStarRail,
			Publisher:         PublisherMihoyo,
			ListURL:           "https://hkrpg-ann-api.mihoyo.com/common/hkrpg_cn/announcement/api/getAnnList",
			ContentURL:        "https://hkrpg-ann-api.mihoyo.com/common/hkrpg_cn/announcement/api/getAnnContent",
			Params:            mihoyoParams("hkrpg", "hkrpg_cn", "prod_gf_cn"),
			CanonicalLanguage: "zh-Hans",
			Locales:           mihoyoLocales,
		},
		GameZenless: {
			Game:              GameZenless,
			Publisher:         PublisherMihoyo,
			ListURL:           "https://announcement-api.mihoyo.com/common/nap_cn/announcement/api/getAnnList",
			ContentURL:        "https://announcement-api.mihoyo.com/common/nap_cn/announcement/api/getAnnContent",
			Params:            mihoyoParams("nap", "nap_cn", "prod_gf_cn"),
			CanonicalLanguage: "zh-Hans",
			Locales:           mihoyoLocales,
		},
		GameWuthering: {
			Game:              GameWuthering,
			Publisher:         PublisherKuro,
			ListURL:           kuroListURL,
			CanonicalLanguage: "zh-Hans",
		},
	}
}
