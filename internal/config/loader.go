package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and deserializes a Config from a YAML file, generating and
// persisting a cookie_key on first load, applying the MAIN_HOSTNAME
// environment override, and defaulting Domain to Hostname.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config unreadable: %w", err)
	}

	cfg := &Config{Hostname: DefaultHostname}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config malformed: %w", err)
	}
	if cfg.Hostname == "" {
		cfg.Hostname = DefaultHostname
	}

	if cfg.CookieKey == "" {
		key, err := randomString(64)
		if err != nil {
			return nil, fmt.Errorf("could not generate cookie key: %w", err)
		}
		cfg.CookieKey = key
		if err := Save(cfg, path); err != nil {
			return nil, err
		}
	}

	if h := os.Getenv("MAIN_HOSTNAME"); h != "" {
		cfg.Hostname = h
	}
	if cfg.Domain == "" {
		cfg.Domain = cfg.Hostname
	}

	return cfg, nil
}

// Save serializes cfg to YAML and writes it atomically (write to a
// temporary file in the same directory, then rename), so concurrent
// readers never observe a torn file. Apps are sorted by id first, so the
// on-disk order stays stable across writes.
func Save(cfg *Config, path string) error {
	sorted := *cfg
	sorted.Apps = append([]App(nil), cfg.Apps...)
	sortAppsByID(sorted.Apps)

	data, err := yaml.Marshal(&sorted)
	if err != nil {
		return fmt.Errorf("could not marshal configuration: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".atrium-config-*.tmp")
	if err != nil {
		return fmt.Errorf("could not save configuration: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not save configuration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not save configuration: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("could not save configuration: %w", err)
	}
	return nil
}

func sortAppsByID(apps []App) {
	for i := 1; i < len(apps); i++ {
		for j := i; j > 0 && apps[j-1].ID > apps[j].ID; j-- {
			apps[j-1], apps[j] = apps[j], apps[j-1]
		}
	}
}

// randomString returns an n-character base64url string (no padding) drawn
// from n bytes of crypto/rand output, suitable both as a cookie_key and as
// an xsrf_token.
func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(buf)
	if len(s) > n {
		s = s[:n]
	}
	return s, nil
}

// RandomString is exported for use by other packages (e.g. session, to
// mint xsrf tokens) that need the same entropy source.
func RandomString(n int) (string, error) { return randomString(n) }
