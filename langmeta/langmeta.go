// Package langmeta provides a shared language metadata registry (English
// and native names) used for provider prompts and CLI output.
package langmeta

import "strings"

// Meta describes language display metadata.
type Meta struct {
	// Name is the English language name, used in translation prompts.
	Name string
	// Native is the language's own name, used in CLI output.
	Native string
}

// Registry contains canonical language metadata keyed by BCP 47 code.
// Locale variants are resolved in Resolve via normalization and base
// fallback.
var Registry = map[string]Meta{
	"ar": {Name: "Arabic", Native: "العربية"},
	"bg": {Name: "Bulgarian", Native: "Български"},
	"cs": {Name: "Czech", Native: "Čeština"},
	"da": {Name: "Danish", Native: "Dansk"},
	"de": {Name: "German", Native: "Deutsch"},
	"el": {Name: "Greek", Native: "Ελληνικά"},
	"en": {Name: "English", Native: "English"},
	"es": {Name: "Spanish", Native: "Español"},
	"et": {Name: "Estonian", Native: "Eesti"},
	"fa": {Name: "Persian", Native: "فارسی"},
	"fi": {Name: "Finnish", Native: "Suomi"},
	"fr": {Name: "French", Native: "Français"},
	"he": {Name: "Hebrew", Native: "עברית"},
	"hi": {Name: "Hindi", Native: "हिन्दी"},
	"hr": {Name: "Croatian", Native: "Hrvatski"},
	"hu": {Name: "Hungarian", Native: "Magyar"},
	"id": {Name: "Indonesian", Native: "Bahasa Indonesia"},
	"it": {Name: "Italian", Native: "Italiano"},
	"ja": {Name: "Japanese", Native: "日本語"},
	"ko": {Name: "Korean", Native: "한국어"},
	"lt": {Name: "Lithuanian", Native: "Lietuvių"},
	"lv": {Name: "Latvian", Native: "Latviešu"},
	"nl": {Name: "Dutch", Native: "Nederlands"},
	"no": {Name: "Norwegian", Native: "Norsk"},
	"pl": {Name: "Polish", Native: "Polski"},
	"pt": {Name: "Portuguese", Native: "Português"},
	"ro": {Name: "Romanian", Native: "Română"},
	"ru": {Name: "Russian", Native: "Русский"},
	"sk": {Name: "Slovak", Native: "Slovenčina"},
	"sl": {Name: "Slovenian", Native: "Slovenščina"},
	"sr": {Name: "Serbian", Native: "Српски"},
	"sv": {Name: "Swedish", Native: "Svenska"},
	"th": {Name: "Thai", Native: "ไทย"},
	"tr": {Name: "Turkish", Native: "Türkçe"},
	"uk": {Name: "Ukrainian", Native: "Українська"},
	"vi": {Name: "Vietnamese", Native: "Tiếng Việt"},
	"zh": {Name: "Chinese", Native: "中文"},
}

// Resolve looks up metadata for a language code. Variants like "pt_BR" or
// "zh-Hans" fall back to their base language. Full English names ("Spanish")
// resolve to themselves so prompts accept either form.
func Resolve(code string) (Meta, bool) {
	if code == "" {
		return Meta{}, false
	}
	norm := strings.ReplaceAll(code, "_", "-")
	if m, ok := Registry[norm]; ok {
		return m, true
	}
	lower := strings.ToLower(norm)
	if m, ok := Registry[lower]; ok {
		return m, true
	}
	if idx := strings.IndexByte(lower, '-'); idx > 0 {
		if m, ok := Registry[lower[:idx]]; ok {
			return m, true
		}
	}
	// Accept a spelled-out English name.
	for _, m := range Registry {
		if strings.EqualFold(m.Name, code) {
			return m, true
		}
	}
	return Meta{}, false
}

// Name returns the English name for a code, or the code itself when the
// registry has no entry — the provider still understands most raw codes.
func Name(code string) string {
	if m, ok := Resolve(code); ok {
		return m.Name
	}
	return code
}
