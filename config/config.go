// Package config loads the YAML configuration spec.md §6 describes: a list
// of repositories and a list of views. Loading is structural only (required
// fields present, enum fields recognised); semantic validation — is the URL
// reachable, are the credentials correct — is deferred to first sync, the
// same division cmd/cctool/updaters.go draws between decoding its YAML and
// actually connecting to Postgres.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/slauger/chantal"
)

// AuthConfig carries per-repository credential material. Only the type
// selection and the raw fields are validated here; the Sync Engine's HTTP
// client is responsible for turning this into the correct scheme.
type AuthConfig struct {
	Type     string `yaml:"type"` // basic|bearer|entitlement
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
}

var validAuthTypes = map[string]bool{"": true, "basic": true, "bearer": true, "entitlement": true}

// SyncConfig tunes the Sync Engine beyond what Repository itself carries.
type SyncConfig struct {
	Concurrency    int `yaml:"concurrency,omitempty"`
	Retries        int `yaml:"retries,omitempty"`
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// RepositoryConfig is one entry of the top-level repositories list.
type RepositoryConfig struct {
	Name    string     `yaml:"name"`
	Family  string     `yaml:"family"`
	URL     string     `yaml:"url"`
	Enabled *bool      `yaml:"enabled,omitempty"`
	Auth    AuthConfig `yaml:"auth,omitempty"`
	Sync    SyncConfig `yaml:"sync,omitempty"`

	// Family-specific. RPM: GPGKeys, EntitlementCert, EntitlementKey. DEB:
	// Suites, Components, Architectures, GPGKeys. APK: GPGKeys. Helm: none.
	GPGKeys         []string `yaml:"gpg_keys,omitempty"`
	EntitlementCert string   `yaml:"entitlement_cert,omitempty"`
	EntitlementKey  string   `yaml:"entitlement_key,omitempty"`
	Suites          []string `yaml:"suites,omitempty"`
	Components      []string `yaml:"components,omitempty"`
	Architectures   []string `yaml:"architectures,omitempty"`
}

// IsEnabled reports whether the repository should be synced; the field
// defaults to true when omitted, so the zero value (nil) must not read as
// false.
func (r RepositoryConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

var validFamilies = map[string]bool{"rpm": true, "deb": true, "apk": true, "helm": true}

// ViewMemberConfig is one member of a view's ordered union.
type ViewMemberConfig struct {
	Kind     string `yaml:"kind"` // repository|snapshot
	Ref      string `yaml:"ref"`
	Position int    `yaml:"position"`
}

// ViewConfig is one entry of the top-level views list (spec.md §4.7; the
// distilled spec.md doesn't spell out a config schema for views, since it
// names them as catalog objects, but they're created the same way
// repositories are — see SPEC_FULL.md §14.2).
type ViewConfig struct {
	Name     string             `yaml:"name"`
	Family   string             `yaml:"family"`
	Conflict string             `yaml:"conflict,omitempty"` // first-wins (default)|last-wins|fail
	Members  []ViewMemberConfig `yaml:"members"`
}

var validConflictPolicies = map[string]bool{"": true, "first-wins": true, "last-wins": true, "fail": true}
var validMemberKinds = map[string]bool{"repository": true, "snapshot": true}

// Config is the top-level document.
type Config struct {
	Repositories []RepositoryConfig `yaml:"repositories"`
	Views        []ViewConfig       `yaml:"views,omitempty"`
}

// Load reads and structurally validates the configuration at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, &chantal.Error{Op: "config.Load", Kind: chantal.ErrConfig, Inner: err}
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, &chantal.Error{Op: "config.Load", Kind: chantal.ErrConfig, Inner: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and recognised enum values, without
// touching the network or a database.
func (c Config) Validate() error {
	names := make(map[string]bool, len(c.Repositories))
	for _, r := range c.Repositories {
		if r.Name == "" {
			return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "repository missing name"}
		}
		if names[r.Name] {
			return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "duplicate repository name: " + r.Name}
		}
		names[r.Name] = true
		if !validFamilies[r.Family] {
			return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "unrecognised family: " + r.Family}
		}
		if r.URL == "" {
			return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "repository " + r.Name + " missing url"}
		}
		if !validAuthTypes[r.Auth.Type] {
			return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "repository " + r.Name + ": unrecognised auth type: " + r.Auth.Type}
		}
	}

	viewNames := make(map[string]bool, len(c.Views))
	for _, v := range c.Views {
		if v.Name == "" {
			return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "view missing name"}
		}
		if viewNames[v.Name] {
			return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "duplicate view name: " + v.Name}
		}
		viewNames[v.Name] = true
		if !validFamilies[v.Family] {
			return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "view " + v.Name + ": unrecognised family: " + v.Family}
		}
		if !validConflictPolicies[v.Conflict] {
			return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "view " + v.Name + ": unrecognised conflict policy: " + v.Conflict}
		}
		if len(v.Members) == 0 {
			return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "view " + v.Name + " has no members"}
		}
		for _, m := range v.Members {
			if !validMemberKinds[m.Kind] {
				return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "view " + v.Name + ": unrecognised member kind: " + m.Kind}
			}
			if m.Ref == "" {
				return &chantal.Error{Op: "config.Validate", Kind: chantal.ErrConfig, Message: "view " + v.Name + ": member missing ref"}
			}
		}
	}
	return nil
}
