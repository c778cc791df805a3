// Package transcache implements the translation cache — a per-language map
// from MD5 checksums of source text to finished translations. Re-running a
// job over an unchanged document answers every unit from the cache, which
// keeps re-assembly deterministic and saves provider tokens.
//
// The cache is stored as glotdoc.cache in the working directory by default.
package transcache

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// CacheFileName is the default cache file name.
const CacheFileName = "glotdoc.cache"

// Version is the cache file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Cache represents the glotdoc.cache file structure.
type Cache struct {
	Version int                          `yaml:"version"`
	Entries map[string]map[string]string `yaml:"entries"` // lang -> md5(source) -> translation

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a cache file from the given directory.
// Returns an empty cache if the file doesn't exist.
func Load(dir string) (*Cache, error) {
	path := filepath.Join(dir, CacheFileName)
	c := &Cache{
		Version: Version,
		Entries: make(map[string]map[string]string),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	c.path = path

	if c.Entries == nil {
		c.Entries = make(map[string]map[string]string)
	}

	return c, nil
}

// Save writes the cache to disk.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		return fmt.Errorf("cache file path not set")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", c.path, err)
	}

	return nil
}

// Path returns the cache file path.
func (c *Cache) Path() string {
	return c.path
}

// ---------------------------------------------------------------------------
// Cache operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// Get looks up the cached translation of sourceText into lang.
func (c *Cache) Get(lang, sourceText string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byHash, ok := c.Entries[lang]
	if !ok {
		return "", false
	}
	t, ok := byHash[Hash(sourceText)]
	return t, ok
}

// Put records a finished translation.
func (c *Cache) Put(lang, sourceText, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Entries[lang] == nil {
		c.Entries[lang] = make(map[string]string)
	}
	c.Entries[lang][Hash(sourceText)] = translation
}

// RemoveLang drops all entries for a language.
func (c *Cache) RemoveLang(lang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Entries, lang)
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entries = make(map[string]map[string]string)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of languages and total cached translations.
func (c *Cache) Stats() (langs, entries int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	langs = len(c.Entries)
	for _, m := range c.Entries {
		entries += len(m)
	}
	return
}

// Langs returns the sorted list of cached languages.
func (c *Cache) Langs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	langs := make([]string, 0, len(c.Entries))
	for l := range c.Entries {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Summary returns a human-readable summary string.
func (c *Cache) Summary() string {
	langs, entries := c.Stats()
	if langs == 0 {
		return "empty"
	}
	return fmt.Sprintf("%d languages, %d entries", langs, entries)
}
