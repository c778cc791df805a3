package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// glotdoc.yaml
// ---------------------------------------------------------------------------

func TestLoadMissingFileGivesEmptyConfig(t *testing.T) {
	f, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if f == nil || f.Provider != "" {
		t.Fatalf("Load on missing file = %+v, want empty config", f)
	}
}

func TestLoadFullConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
provider: openai
model: gpt-4.1-mini
target_lang: de
budget:
  global: 128
  pages: 8
  per_page: 32
retry:
  max_attempts: 5
  unit_timeout: 90s
  job_timeout: 30m
proxy: http://localhost:3128
`)

	f, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if f.Provider != "openai" || f.Model != "gpt-4.1-mini" {
		t.Fatalf("provider/model = %q/%q", f.Provider, f.Model)
	}
	if f.Budget.Global != 128 || f.Budget.Pages != 8 || f.Budget.PerPage != 32 {
		t.Fatalf("budget = %+v", f.Budget)
	}
	if f.Retry.MaxAttempts != 5 {
		t.Fatalf("max_attempts = %d", f.Retry.MaxAttempts)
	}
	if got := f.UnitTimeout(0); got != 90*time.Second {
		t.Fatalf("UnitTimeout = %v, want 90s", got)
	}
	if got := f.JobTimeout(); got != 30*time.Minute {
		t.Fatalf("JobTimeout = %v, want 30m", got)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "retry:\n  unit_timeout: ninety\n")
	if _, err := Load(dir); err == nil {
		t.Fatal("bad duration should fail validation")
	}
}

func TestTimeoutFallbacks(t *testing.T) {
	f := &File{}
	if got := f.UnitTimeout(42 * time.Second); got != 42*time.Second {
		t.Fatalf("UnitTimeout fallback = %v", got)
	}
	if got := f.JobTimeout(); got != 0 {
		t.Fatalf("JobTimeout on empty config = %v, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

func TestCredentialStoreRoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if got := GetAPIKey("google"); got != "" {
		t.Fatalf("empty store returned key %q", got)
	}

	if err := SetAPIKey("google", "secret-key-123"); err != nil {
		t.Fatal(err)
	}
	if got := GetAPIKey("google"); got != "secret-key-123" {
		t.Fatalf("GetAPIKey = %q", got)
	}

	// Owner-only permissions.
	info, err := os.Stat(AuthFilePath())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("auth file mode = %o, want 0600", perm)
	}

	if err := RemoveCredential("google"); err != nil {
		t.Fatal(err)
	}
	if got := GetAPIKey("google"); got != "" {
		t.Fatalf("removed key still present: %q", got)
	}
}

func TestResolveAPIKeyPrecedence(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	if err := SetAPIKey("openai", "stored"); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GLOTDOC_API_KEY", "from-env")
	if got := ResolveAPIKey("from-flag", "openai"); got != "from-flag" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := ResolveAPIKey("", "openai"); got != "from-env" {
		t.Fatalf("env should beat store, got %q", got)
	}

	t.Setenv("GLOTDOC_API_KEY", "")
	if got := ResolveAPIKey("", "openai"); got != "stored" {
		t.Fatalf("store fallback, got %q", got)
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey("abc"); got != "****" {
		t.Fatalf("short key mask = %q", got)
	}
	if got := MaskKey("sk-1234567890abcdef"); got != "sk-1...cdef" {
		t.Fatalf("mask = %q", got)
	}
}
