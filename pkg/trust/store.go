// Package trust provides a local store of trusted issuer keys.
// Keys are Ed25519 public keys kept as JWK files named by their did:key, so
// a verifier can find the key a credential claims to be signed with without
// network access. The key found here is still re-derived and compared by
// the proof engines; the store only decides which keys are trusted.
package trust

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-jose/go-jose/v4"

	"github.com/confbadge/badgecore/pkg/did"
)

// Common errors returned by this package.
var (
	ErrKeyNotFound    = errors.New("key not found in trust store")
	ErrIssuerNotFound = errors.New("issuer not found in trust store")
	ErrInvalidKey     = errors.New("invalid key format")
)

// EnvTrustPath overrides the default store directory.
const EnvTrustPath = "BADGECORE_TRUST_PATH"

// Entry is one trusted key.
type Entry struct {
	DID          string `json:"did"`
	PublicKeyHex string `json:"publicKeyHex"`
}

// Store is the interface for a trust store.
type Store interface {
	// Add trusts a hex Ed25519 public key and returns its did:key.
	Add(publicKeyHex string) (string, error)

	// Get retrieves the JWK for a did:key or one of its verification
	// method URLs.
	Get(didOrVM string) (*jose.JSONWebKey, error)

	// PublicKeyHex is Get returning the hex public key.
	PublicKeyHex(didOrVM string) (string, error)

	// List returns all trusted keys ordered by DID.
	List() ([]Entry, error)

	// Remove stops trusting a did:key.
	Remove(didOrVM string) error

	// AddIssuerMapping associates a credential issuer id with a did:key.
	AddIssuerMapping(issuerID, keyDID string) error

	// GetByIssuer returns the did:keys mapped to an issuer id.
	GetByIssuer(issuerID string) ([]string, error)
}

// FileStore implements Store using the filesystem.
// Default location: ~/.badgecore/trust/
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// DefaultTrustDir returns the default trust store directory.
func DefaultTrustDir() string {
	if envPath := os.Getenv(EnvTrustPath); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".badgecore/trust"
	}
	return filepath.Join(home, ".badgecore", "trust")
}

// NewFileStore creates a new file-based trust store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultTrustDir()
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create trust directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// normalize strips a verification method fragment and checks the DID.
func normalize(didOrVM string) (string, error) {
	d, err := did.Parse(didOrVM)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// keyPath returns the path for a key file.
func (s *FileStore) keyPath(keyDID string) string {
	return filepath.Join(s.dir, sanitizeFilename(keyDID)+".jwk")
}

// issuersPath returns the path for the issuers mapping file.
func (s *FileStore) issuersPath() string {
	return filepath.Join(s.dir, "issuers.json")
}

// Add trusts publicKeyHex.
func (s *FileStore) Add(publicKeyHex string) (string, error) {
	pub, err := did.ParsePublicKey(publicKeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	keyDID := did.NewKeyDID(pub)

	key := jose.JSONWebKey{
		Key:       pub,
		KeyID:     keyDID,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal key: %w", err)
	}

	if err := os.WriteFile(s.keyPath(keyDID), data, 0600); err != nil {
		return "", fmt.Errorf("failed to write key: %w", err)
	}

	return keyDID, nil
}

// Get retrieves a key by did:key.
func (s *FileStore) Get(didOrVM string) (*jose.JSONWebKey, error) {
	keyDID, err := normalize(didOrVM)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readKey(s.keyPath(keyDID))
}

func (s *FileStore) readKey(path string) (*jose.JSONWebKey, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	var key jose.JSONWebKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse key: %w", err)
	}
	if _, ok := key.Key.(ed25519.PublicKey); !ok {
		return nil, fmt.Errorf("%w: %s is not an Ed25519 public key", ErrInvalidKey, filepath.Base(path))
	}
	return &key, nil
}

// PublicKeyHex returns the hex public key trusted for didOrVM. The stored
// key must still hash to the DID it is filed under.
func (s *FileStore) PublicKeyHex(didOrVM string) (string, error) {
	key, err := s.Get(didOrVM)
	if err != nil {
		return "", err
	}
	pub := key.Key.(ed25519.PublicKey)
	if did.NewKeyDID(pub) != key.KeyID {
		return "", fmt.Errorf("%w: stored key does not match %s", ErrInvalidKey, key.KeyID)
	}
	return hex.EncodeToString(pub), nil
}

// List returns all keys in the store.
func (s *FileStore) List() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read trust directory: %w", err)
	}

	var out []Entry
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jwk" {
			continue
		}

		key, err := s.readKey(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, Entry{
			DID:          key.KeyID,
			PublicKeyHex: hex.EncodeToString(key.Key.(ed25519.PublicKey)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DID < out[j].DID })
	return out, nil
}

// Remove removes a key by did:key.
func (s *FileStore) Remove(didOrVM string) error {
	keyDID, err := normalize(didOrVM)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.keyPath(keyDID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrKeyNotFound
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove key: %w", err)
	}

	// Also remove from issuers mapping
	issuers, err := s.loadIssuers()
	if err == nil {
		for issuer, dids := range issuers {
			for i, d := range dids {
				if d == keyDID {
					issuers[issuer] = append(dids[:i], dids[i+1:]...)
					break
				}
			}
			if len(issuers[issuer]) == 0 {
				delete(issuers, issuer)
			}
		}
		_ = s.saveIssuers(issuers)
	}

	return nil
}

// AddIssuerMapping maps an issuer id to a trusted did:key.
func (s *FileStore) AddIssuerMapping(issuerID, keyDID string) error {
	keyDID, err := normalize(keyDID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.keyPath(keyDID)); os.IsNotExist(err) {
		return ErrKeyNotFound
	}

	issuers, err := s.loadIssuers()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if issuers == nil {
		issuers = make(map[string][]string)
	}

	dids := issuers[issuerID]
	for _, d := range dids {
		if d == keyDID {
			return nil
		}
	}

	issuers[issuerID] = append(dids, keyDID)
	return s.saveIssuers(issuers)
}

// GetByIssuer returns the did:keys mapped to issuerID that are still in the
// store.
func (s *FileStore) GetByIssuer(issuerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issuers, err := s.loadIssuers()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIssuerNotFound
		}
		return nil, err
	}

	mapped, ok := issuers[issuerID]
	if !ok || len(mapped) == 0 {
		return nil, ErrIssuerNotFound
	}

	var dids []string
	for _, d := range mapped {
		if _, err := os.Stat(s.keyPath(d)); err == nil {
			dids = append(dids, d)
		}
	}
	if len(dids) == 0 {
		return nil, ErrKeyNotFound
	}
	return dids, nil
}

// loadIssuers loads the issuers mapping file.
func (s *FileStore) loadIssuers() (map[string][]string, error) {
	data, err := os.ReadFile(s.issuersPath())
	if err != nil {
		return nil, err
	}

	var issuers map[string][]string
	if err := json.Unmarshal(data, &issuers); err != nil {
		return nil, fmt.Errorf("failed to parse issuers file: %w", err)
	}

	return issuers, nil
}

// saveIssuers saves the issuers mapping file.
func (s *FileStore) saveIssuers(issuers map[string][]string) error {
	data, err := json.MarshalIndent(issuers, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal issuers: %w", err)
	}

	if err := os.WriteFile(s.issuersPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write issuers file: %w", err)
	}

	return nil
}

// sanitizeFilename converts a DID to a safe filename.
func sanitizeFilename(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '#':
			return '_'
		}
		return r
	}, id)
}
