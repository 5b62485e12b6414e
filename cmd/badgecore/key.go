package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"

	"github.com/confbadge/badgecore/pkg/config"
	"github.com/confbadge/badgecore/pkg/did"
)

var (
	keyOutPrivate string
	keyOutPublic  string
	keyOutSeed    string
	keyShowDID    bool
	keyFile       string
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage Ed25519 signing keys",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a new Ed25519 key pair",
	Long: `Generate a new Ed25519 key pair for signing credentials.

Outputs:
  - Private key in JWK format (kid is the did:key)
  - Public key in JWK format
  - Optionally the hex seed, for use as BADGECORE_PRIVATE_KEY

The private key is only ever written to files created with mode 0600; it is
never printed.`,
	Example: `  # Generate keys with default names
  badgecore key gen

  # Also write the hex seed for environment-based configuration
  badgecore key gen --out-seed issuer.seed

  # Only show did:key on stdout
  badgecore key gen --show-did`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runKeyGen(cmd.OutOrStdout())
	},
}

var keyDeriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Show the public key, did:key and verification method for a private key",
	Long: `Derive the public identity of a private key.

The key is read from --key-file (JWK), or from BADGECORE_PRIVATE_KEY / the
config file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		privHex, err := loadPrivateKeyHex()
		if err != nil {
			return err
		}
		return runKeyDerive(cmd.OutOrStdout(), privHex)
	},
}

func runKeyGen(out io.Writer) error {
	// 1. Generate Key Pair
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	// 2. did:key doubles as the JWK key id
	didKey := did.NewKeyDID(pub)

	privJwk := jose.JSONWebKey{Key: priv, KeyID: didKey, Algorithm: string(jose.EdDSA), Use: "sig"}
	pubJwk := jose.JSONWebKey{Key: pub, KeyID: didKey, Algorithm: string(jose.EdDSA), Use: "sig"}

	// 3. Save Private Key
	privBytes, err := json.MarshalIndent(privJwk, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(keyOutPrivate, privBytes, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if !keyShowDID {
		fmt.Fprintf(out, "✅ Private Key saved to %s\n", keyOutPrivate)
	}

	// 4. Save Public Key
	pubBytes, err := json.MarshalIndent(pubJwk, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(keyOutPublic, pubBytes, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	if !keyShowDID {
		fmt.Fprintf(out, "✅ Public Key saved to %s\n", keyOutPublic)
	}

	// 5. Optional hex seed
	if keyOutSeed != "" {
		if err := os.WriteFile(keyOutSeed, []byte(hex.EncodeToString(priv.Seed())+"\n"), 0600); err != nil {
			return fmt.Errorf("failed to write seed: %w", err)
		}
		if !keyShowDID {
			fmt.Fprintf(out, "✅ Hex seed saved to %s\n", keyOutSeed)
		}
	}

	if keyShowDID {
		fmt.Fprintln(out, didKey)
		return nil
	}
	fmt.Fprintf(out, "🔑 did:key: %s\n", didKey)
	fmt.Fprintf(out, "   Public Key: %s\n", hex.EncodeToString(pub))
	return nil
}

func runKeyDerive(out io.Writer, privateKeyHex string) error {
	pub, err := did.DerivePublicKey(privateKeyHex)
	if err != nil {
		return err
	}
	keyDID, err := did.KeyDIDFromPublicKey(pub)
	if err != nil {
		return err
	}
	vm, err := did.VerificationMethod(keyDID, pub)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Public Key:          %s\n", pub)
	fmt.Fprintf(out, "did:key:             %s\n", keyDID)
	fmt.Fprintf(out, "Verification Method: %s\n", vm)
	return nil
}

// loadPrivateKeyFile loads an Ed25519 private key from a JWK file and
// returns its hex seed.
func loadPrivateKeyFile(path string) (string, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read private key file: %w", err)
	}

	var jwk jose.JSONWebKey
	if err := json.Unmarshal(keyData, &jwk); err != nil {
		return "", fmt.Errorf("failed to parse private JWK: %w", err)
	}

	priv, ok := jwk.Key.(ed25519.PrivateKey)
	if !ok {
		return "", errors.New("key in file is not an Ed25519 private key")
	}
	return hex.EncodeToString(priv.Seed()), nil
}

// loadPrivateKeyHex resolves the signing key: --key-file first, then
// BADGECORE_PRIVATE_KEY or the config file.
func loadPrivateKeyHex() (string, error) {
	if keyFile != "" {
		return loadPrivateKeyFile(keyFile)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	if cfg.Keys.PrivateKey == "" {
		return "", fmt.Errorf("no signing key: use --key-file or set %s", config.EnvPrivateKey)
	}
	return cfg.Keys.PrivateKey, nil
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyGenCmd)
	keyCmd.AddCommand(keyDeriveCmd)

	keyGenCmd.Flags().StringVar(&keyOutPrivate, "out-priv", "private.jwk", "Output path for private key (JWK format)")
	keyGenCmd.Flags().StringVar(&keyOutPublic, "out-pub", "public.jwk", "Output path for public key (JWK format)")
	keyGenCmd.Flags().StringVar(&keyOutSeed, "out-seed", "", "Output path for the hex private seed (optional)")
	keyGenCmd.Flags().BoolVar(&keyShowDID, "show-did", false, "Only output did:key to stdout (for scripting)")

	keyDeriveCmd.Flags().StringVar(&keyFile, "key-file", "", "Path to private key file (JWK)")
}
