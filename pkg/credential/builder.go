package credential

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Build when a required field is missing or
// a timestamp is not a zone-qualified RFC 3339 instant.
var ErrInvalidConfig = errors.New("invalid credential config")

// Config is everything needed to build an unsigned credential. All
// timestamps are supplied by the caller; Build never reads the clock.
type Config struct {
	// ID is the credential identifier (URI, often urn:uuid:...).
	ID string

	// Name is the display name of the credential.
	Name string

	Issuer IssuerConfig

	// SubjectID identifies the recipient (mailto: URI or DID).
	SubjectID string

	// SubjectType defaults to AchievementSubject.
	SubjectType []string

	Achievement AchievementConfig

	// ValidFrom is required. ValidUntil is optional.
	ValidFrom  string
	ValidUntil string
}

// IssuerConfig is the identity of the issuing organization.
type IssuerConfig struct {
	ID          string
	Name        string
	URL         string
	Email       string
	Description string
	ImageURL    string
}

// AchievementConfig describes the achievement being awarded.
type AchievementConfig struct {
	ID          string
	Name        string
	Description string
	Narrative   string
	ImageURL    string

	// Type is the badge-type tag (achievementType), e.g. "Badge".
	Type string

	Evidence []Evidence

	// Creator is the author of the achievement. If its ID is empty the
	// issuer profile is used.
	Creator IssuerConfig
}

// Build produces a structurally complete, unsigned credential.
func Build(cfg Config) (*Credential, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	subjectType := cfg.SubjectType
	if len(subjectType) == 0 {
		subjectType = []string{TypeAchievementSubject}
	}

	issuer := profile(cfg.Issuer)

	creator := issuer
	if cfg.Achievement.Creator.ID != "" {
		creator = profile(cfg.Achievement.Creator)
	}

	achievement := Achievement{
		ID:              cfg.Achievement.ID,
		Type:            []string{TypeAchievement},
		AchievementType: cfg.Achievement.Type,
		Name:            cfg.Achievement.Name,
		Description:     cfg.Achievement.Description,
		Criteria:        Criteria{Narrative: cfg.Achievement.Narrative},
		Creator:         &creator,
	}
	if cfg.Achievement.ImageURL != "" {
		achievement.Image = &Image{ID: cfg.Achievement.ImageURL, Type: TypeImage}
	}
	for _, e := range cfg.Achievement.Evidence {
		if len(e.Type) == 0 {
			e.Type = []string{TypeEvidence}
		}
		achievement.Evidence = append(achievement.Evidence, e)
	}

	return &Credential{
		Context:    Contexts(),
		ID:         cfg.ID,
		Type:       Types(),
		Name:       cfg.Name,
		Issuer:     issuer,
		ValidFrom:  cfg.ValidFrom,
		ValidUntil: cfg.ValidUntil,
		CredentialSubject: Subject{
			ID:          cfg.SubjectID,
			Type:        subjectType,
			Achievement: achievement,
		},
	}, nil
}

func profile(c IssuerConfig) Profile {
	p := Profile{
		ID:          c.ID,
		Type:        []string{TypeProfile},
		Name:        c.Name,
		URL:         c.URL,
		Email:       c.Email,
		Description: c.Description,
	}
	if c.ImageURL != "" {
		p.Image = &Image{ID: c.ImageURL, Type: TypeImage}
	}
	return p
}

func (cfg Config) validate() error {
	required := []struct {
		field string
		value string
	}{
		{"id", cfg.ID},
		{"issuer.id", cfg.Issuer.ID},
		{"credentialSubject.id", cfg.SubjectID},
		{"achievement.id", cfg.Achievement.ID},
		{"achievement.name", cfg.Achievement.Name},
		{"validFrom", cfg.ValidFrom},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, r.field)
		}
	}

	if _, err := ParseInstant(cfg.ValidFrom); err != nil {
		return fmt.Errorf("%w: validFrom: %v", ErrInvalidConfig, err)
	}
	if cfg.ValidUntil != "" {
		if _, err := ParseInstant(cfg.ValidUntil); err != nil {
			return fmt.Errorf("%w: validUntil: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ParseInstant parses an RFC 3339 timestamp. RFC 3339 requires a zone
// designator ("Z" or an offset), so local-time strings are rejected.
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a zone-qualified RFC 3339 timestamp", s)
	}
	return t, nil
}
