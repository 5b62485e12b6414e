// Package config loads issuer settings from a YAML file with environment
// overrides for key material.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/confbadge/badgecore/pkg/credential"
	"github.com/confbadge/badgecore/pkg/did"
)

// Environment variables.
const (
	EnvConfigPath = "BADGECORE_CONFIG"
	EnvPrivateKey = "BADGECORE_PRIVATE_KEY"
	EnvPublicKey  = "BADGECORE_PUBLIC_KEY"
)

// DefaultFile is used when neither a path nor BADGECORE_CONFIG is given.
const DefaultFile = "badgecore.yaml"

// ErrInvalidConfig is returned when a loaded configuration is unusable.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the issuer configuration.
type Config struct {
	Issuer      Profile     `yaml:"issuer"`
	Achievement Achievement `yaml:"achievement"`
	Credential  Credential  `yaml:"credential"`
	Validity    Validity    `yaml:"validity"`
	Baking      Baking      `yaml:"baking"`
	Keys        Keys        `yaml:"keys"`
}

// Profile describes an issuer or achievement creator.
type Profile struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	URL         string `yaml:"url,omitempty"`
	Email       string `yaml:"email,omitempty"`
	Description string `yaml:"description,omitempty"`
	Image       string `yaml:"image,omitempty"`
}

// Achievement describes the default achievement awarded.
type Achievement struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Narrative   string   `yaml:"narrative,omitempty"`
	Image       string   `yaml:"image,omitempty"`
	Type        string   `yaml:"type,omitempty"`
	Creator     *Profile `yaml:"creator,omitempty"`
}

// Credential holds credential-level defaults.
type Credential struct {
	Name        string   `yaml:"name,omitempty"`
	SubjectType []string `yaml:"subject_type,omitempty"`
}

// Validity controls the validity window of issued credentials.
type Validity struct {
	// Duration, if set, is added to validFrom to produce validUntil.
	Duration string `yaml:"duration,omitempty"`
}

// Baking holds defaults for SVG baking.
type Baking struct {
	VerifyURL string `yaml:"verify_url,omitempty"`
	Legacy    bool   `yaml:"legacy,omitempty"`
}

// Keys holds hex key material. Prefer the environment over the file.
type Keys struct {
	PrivateKey string `yaml:"private_key,omitempty"`
	PublicKey  string `yaml:"public_key,omitempty"`
}

// DefaultPath returns BADGECORE_CONFIG if set, otherwise DefaultFile.
func DefaultPath() string {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}
	return DefaultFile
}

// Load reads the configuration at path and applies environment overrides.
// An empty path means DefaultPath; a missing default file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without touching the environment.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvPrivateKey)); v != "" {
		c.Keys.PrivateKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPublicKey)); v != "" {
		c.Keys.PublicKey = v
	}
}

// Validate checks key material and durations. Messages name the field and
// never include its value when the field holds a key.
func (c *Config) Validate() error {
	if c.Keys.PrivateKey != "" {
		if _, err := did.ParsePrivateKey(c.Keys.PrivateKey); err != nil {
			return fmt.Errorf("%w: keys.private_key: %w", ErrInvalidConfig, err)
		}
	}
	if c.Keys.PublicKey != "" {
		if _, err := did.ParsePublicKey(c.Keys.PublicKey); err != nil {
			return fmt.Errorf("%w: keys.public_key: %w", ErrInvalidConfig, err)
		}
	}
	if c.Keys.PrivateKey != "" && c.Keys.PublicKey != "" {
		derived, err := did.DerivePublicKey(c.Keys.PrivateKey)
		if err != nil {
			return fmt.Errorf("%w: keys.private_key: %w", ErrInvalidConfig, err)
		}
		if !strings.EqualFold(derived, c.Keys.PublicKey) {
			return fmt.Errorf("%w: keys.public_key does not match keys.private_key", ErrInvalidConfig)
		}
	}
	if c.Validity.Duration != "" {
		d, err := time.ParseDuration(c.Validity.Duration)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: validity.duration %q must be a positive duration", ErrInvalidConfig, c.Validity.Duration)
		}
	}
	return nil
}

// PublicKeyHex returns the configured public key, deriving it from the
// private key when only that is set.
func (c *Config) PublicKeyHex() (string, error) {
	if c.Keys.PublicKey != "" {
		return strings.ToLower(c.Keys.PublicKey), nil
	}
	if c.Keys.PrivateKey == "" {
		return "", fmt.Errorf("%w: no key configured; set %s or %s", ErrInvalidConfig, EnvPublicKey, EnvPrivateKey)
	}
	return did.DerivePublicKey(c.Keys.PrivateKey)
}

// ValidUntil returns validFrom plus the configured duration, or "" when no
// duration is configured.
func (c *Config) ValidUntil(validFrom string) (string, error) {
	if c.Validity.Duration == "" {
		return "", nil
	}
	from, err := credential.ParseInstant(validFrom)
	if err != nil {
		return "", fmt.Errorf("%w: validFrom: %v", ErrInvalidConfig, err)
	}
	d, err := time.ParseDuration(c.Validity.Duration)
	if err != nil {
		return "", fmt.Errorf("%w: validity.duration: %v", ErrInvalidConfig, err)
	}
	return from.Add(d).UTC().Format(time.RFC3339), nil
}

// CredentialConfig produces a builder configuration for one recipient.
// validUntil may be empty.
func (c *Config) CredentialConfig(id, subjectID, validFrom, validUntil string) credential.Config {
	cc := credential.Config{
		ID:          id,
		Name:        c.Credential.Name,
		Issuer:      c.Issuer.issuerConfig(),
		SubjectID:   subjectID,
		SubjectType: c.Credential.SubjectType,
		Achievement: credential.AchievementConfig{
			ID:          c.Achievement.ID,
			Name:        c.Achievement.Name,
			Description: c.Achievement.Description,
			Narrative:   c.Achievement.Narrative,
			ImageURL:    c.Achievement.Image,
			Type:        c.Achievement.Type,
		},
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
	}
	if c.Achievement.Creator != nil {
		cc.Achievement.Creator = c.Achievement.Creator.issuerConfig()
	}
	if cc.Name == "" {
		cc.Name = c.Achievement.Name
	}
	return cc
}

func (p Profile) issuerConfig() credential.IssuerConfig {
	return credential.IssuerConfig{
		ID:          p.ID,
		Name:        p.Name,
		URL:         p.URL,
		Email:       p.Email,
		Description: p.Description,
		ImageURL:    p.Image,
	}
}
