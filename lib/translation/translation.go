package translation

import (
	"strings"

	"github.com/leonelquinteros/gotext"
)

const (
	DefaultLanguage = "en"
	domain          = "default"
)

// Configure loads <dir>/<lang>/LC_MESSAGES/default.po. Missing catalogs leave the
// message ids, which are the English texts, untranslated.
func Configure(dir, lang string) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = DefaultLanguage
	}
	gotext.Configure(dir, lang, domain)
}

func GetLanguage() string {
	lang := gotext.GetLanguage()

	if lang == "und" || lang == "" {
		return DefaultLanguage
	}

	return lang
}

// Translate looks up msgID and formats it with vars.
func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
