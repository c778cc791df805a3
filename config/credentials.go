// Credential storage for provider API keys.
//
// Keys are stored in the XDG data directory:
//
//	$XDG_DATA_HOME/glotdoc/auth.json  (default: ~/.local/share/glotdoc/auth.json)
//
// The file is a JSON object keyed by provider ID. File permissions are 0600
// (owner read/write only).
//
// Lookup order for API keys:
//  1. --api-key flag (highest priority)
//  2. GLOTDOC_API_KEY environment variable
//  3. This credential store
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dataDirName  = "glotdoc"
	authFileName = "auth.json"
)

// Credential is the stored entry per provider.
type Credential struct {
	// Key is the API key.
	Key string `json:"key"`
	// BaseURL is an optional custom endpoint.
	BaseURL string `json:"baseUrl,omitempty"`
}

// CredentialStore holds all provider credentials, keyed by provider ID.
type CredentialStore map[string]*Credential

// dataDir returns the XDG data directory for glotdoc.
// Respects $XDG_DATA_HOME (falls back to ~/.local/share).
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

// AuthFilePath returns the auth.json file path for display purposes.
func AuthFilePath() string {
	dir, err := dataDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, authFileName)
}

// LoadCredentials reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func LoadCredentials() CredentialStore {
	path := AuthFilePath()
	if path == "" {
		return make(CredentialStore)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(CredentialStore)
	}

	var store CredentialStore
	if err := json.Unmarshal(data, &store); err != nil {
		return make(CredentialStore)
	}
	if store == nil {
		return make(CredentialStore)
	}
	return store
}

// SaveCredentials writes the credential store to disk with 0600 permissions.
func SaveCredentials(store CredentialStore) error {
	path := AuthFilePath()
	if path == "" {
		return fmt.Errorf("cannot determine credential path")
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// SetAPIKey stores an API key for a provider (upsert).
func SetAPIKey(providerID, key string) error {
	store := LoadCredentials()
	existing := store[providerID]
	cred := &Credential{Key: key}
	if existing != nil {
		cred.BaseURL = existing.BaseURL
	}
	store[providerID] = cred
	return SaveCredentials(store)
}

// GetAPIKey retrieves the stored API key for a provider.
// Returns empty string if not found.
func GetAPIKey(providerID string) string {
	cred := LoadCredentials()[providerID]
	if cred == nil {
		return ""
	}
	return cred.Key
}

// RemoveCredential deletes credentials for a provider.
func RemoveCredential(providerID string) error {
	store := LoadCredentials()
	if _, ok := store[providerID]; !ok {
		return nil
	}
	delete(store, providerID)
	return SaveCredentials(store)
}

// ResolveAPIKey applies the lookup order: flag, environment, store.
func ResolveAPIKey(flagValue, providerID string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("GLOTDOC_API_KEY"); env != "" {
		return env
	}
	return GetAPIKey(providerID)
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
