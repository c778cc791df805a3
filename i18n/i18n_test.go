package i18n

import "testing"

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")
}

func TestLocaleFromEnvPriorityAndNormalization(t *testing.T) {
	t.Run("LANGUAGE has highest priority", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU.UTF-8:en_US")
		t.Setenv("LC_ALL", "de_DE.UTF-8")

		if got := localeFromEnv(); got != "ru_RU" {
			t.Fatalf("localeFromEnv() = %q, want %q", got, "ru_RU")
		}
	})

	t.Run("C and POSIX are skipped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "C")
		t.Setenv("LC_ALL", "POSIX")
		t.Setenv("LC_MESSAGES", "fr_FR.UTF-8")

		if got := localeFromEnv(); got != "fr_FR" {
			t.Fatalf("localeFromEnv() = %q, want %q", got, "fr_FR")
		}
	})

	t.Run("falls back to en", func(t *testing.T) {
		clearLocaleEnv(t)
		if got := localeFromEnv(); got != "en" {
			t.Fatalf("localeFromEnv() = %q, want %q", got, "en")
		}
	})
}

func TestTAndNFormatWhenUninitialized(t *testing.T) {
	old := locale
	locale = nil
	t.Cleanup(func() { locale = old })

	if got := T("Hello"); got != "Hello" {
		t.Fatalf("T passthrough = %q, want %q", got, "Hello")
	}
	if got := T("Cache: %s", "3 entries"); got != "Cache: 3 entries" {
		t.Fatalf("T formatted = %q, want %q", got, "Cache: 3 entries")
	}
	if got := N("%d file", "%d files", 1, 1); got != "1 file" {
		t.Fatalf("N singular = %q, want %q", got, "1 file")
	}
	if got := N("%d file", "%d files", 2, 2); got != "2 files" {
		t.Fatalf("N plural = %q, want %q", got, "2 files")
	}
}

func TestInitLoadsEmbeddedCatalog(t *testing.T) {
	old := locale
	t.Cleanup(func() { locale = old })

	Init("ru")
	if got := T("Cache cleared"); got != "Кэш очищен" {
		t.Fatalf("T with ru catalog = %q", got)
	}
	if got := T("Translation complete: %s", "out.txt"); got != "Перевод завершён: out.txt" {
		t.Fatalf("T with args = %q", got)
	}

	// Unknown msgids still pass through formatted.
	if got := T("no such message %d", 7); got != "no such message 7" {
		t.Fatalf("T passthrough = %q", got)
	}
}
