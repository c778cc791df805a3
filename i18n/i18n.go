// Package i18n localizes glotdoc's own CLI messages.
//
// Message catalogs are gettext .po files embedded per language under
// locales/{lang}/LC_MESSAGES/glotdoc.po. Init loads one catalog at startup;
// T and N then translate and format in a single call:
//
//	i18n.Init("")
//	fmt.Println(i18n.T("Translating %s to %s...", file, lang))
//	fmt.Println(i18n.N("%d unit failed", "%d units failed", n, n))
//
// Passing the arguments through T and N keeps the untranslated msgid a
// constant at every call site, so the catalogs stay extractable with the
// standard gettext tooling.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// catalogFS embeds locales/{lang}/LC_MESSAGES/glotdoc.po.
//
//go:embed all:locales
var catalogFS embed.FS

// domain is the gettext domain of glotdoc's own messages.
const domain = "glotdoc"

// locale is nil until Init runs; T and N then pass msgids through.
var locale *gotext.Locale

// Init loads the message catalog for lang, or for the locale environment
// when lang is empty. Call once at startup, before the first T or N.
func Init(lang string) {
	if lang == "" {
		lang = localeFromEnv()
	}
	l := gotext.NewLocaleFSWithPath(lang, catalogFS, "locales")
	l.AddDomain(domain)
	l.SetDomain(domain)
	locale = l
}

// T translates msgid and interpolates args. A message missing from the
// catalog passes through untranslated, still formatted.
func T(msgid string, args ...any) string {
	if locale != nil {
		return locale.Get(msgid, args...)
	}
	return sprintf(msgid, args)
}

// N picks the plural form for n per the catalog's plural formula,
// translates it, and interpolates args.
func N(singular, plural string, n int, args ...any) string {
	if locale != nil {
		return locale.GetN(singular, plural, n, args...)
	}
	if n == 1 {
		return sprintf(singular, args)
	}
	return sprintf(plural, args)
}

func sprintf(format string, args []any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// localeFromEnv resolves the user's language the way GNU gettext does:
// LANGUAGE beats LC_ALL beats LC_MESSAGES beats LANG, and "C"/"POSIX"
// mean untranslated output.
func localeFromEnv() string {
	for _, name := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(name)
		if name == "LANGUAGE" {
			// Colon-separated preference list; only the head matters here.
			val, _, _ = strings.Cut(val, ":")
		}
		// Drop the encoding suffix: "ru_RU.UTF-8" selects "ru_RU".
		val, _, _ = strings.Cut(val, ".")
		switch val {
		case "", "C", "POSIX":
			continue
		}
		return val
	}
	return "en"
}
