package trust

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-jose/go-jose/v4"
)

// ExportJWKS returns every trusted key as a JWK Set, ordered by DID. Each
// key's kid is its did:key.
func ExportJWKS(store Store) (*jose.JSONWebKeySet, error) {
	entries, err := store.List()
	if err != nil {
		return nil, err
	}

	set := &jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(entries))}
	for _, e := range entries {
		pub, err := hex.DecodeString(e.PublicKeyHex)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidKey, e.DID)
		}
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       ed25519.PublicKey(pub),
			KeyID:     e.DID,
			Algorithm: string(jose.EdDSA),
			Use:       "sig",
		})
	}
	return set, nil
}

// ReadJWKS decodes a JWK Set.
func ReadJWKS(r io.Reader) (*jose.JSONWebKeySet, error) {
	var set jose.JSONWebKeySet
	if err := json.NewDecoder(r).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}
	return &set, nil
}

// ImportJWKS trusts every Ed25519 public key in set and returns the did:keys
// added. The kid of each JWK is ignored; keys are filed under the DID
// derived from the key itself. Non-Ed25519 keys and private keys are
// rejected before anything is added.
func ImportJWKS(store Store, set *jose.JSONWebKeySet) ([]string, error) {
	if set == nil || len(set.Keys) == 0 {
		return nil, fmt.Errorf("%w: JWKS contains no keys", ErrInvalidKey)
	}

	pubs := make([]string, 0, len(set.Keys))
	for i, k := range set.Keys {
		pub, ok := k.Key.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: key %d is not an Ed25519 public key", ErrInvalidKey, i)
		}
		pubs = append(pubs, hex.EncodeToString(pub))
	}

	dids := make([]string, 0, len(pubs))
	for _, pub := range pubs {
		d, err := store.Add(pub)
		if err != nil {
			return dids, err
		}
		dids = append(dids, d)
	}
	return dids, nil
}
