package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"

	"github.com/confbadge/badgecore/pkg/trust"
)

var (
	trustFromJWK  string
	trustFromJWKS string
	trustIssuer   string
	trustDir      string
)

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage trusted issuer keys",
	Long: `Manage the local trust store used by verify when no key is given.

The trust store holds Ed25519 public keys of issuers, filed by did:key.

Location: ~/.badgecore/trust/ (or $BADGECORE_TRUST_PATH)`,
}

var trustAddCmd = &cobra.Command{
	Use:   "add [public-key-hex]",
	Short: "Trust an issuer public key",
	Example: `  # Add a hex public key
  badgecore trust add d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a

  # Add from a public JWK file and map it to an issuer id
  badgecore trust add --from-jwk public.jwk --issuer https://conf.example.org

  # Import every key exported by another verifier
  badgecore trust export | ssh verifier badgecore trust add --from-jwks -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := trust.NewFileStore(trustDir)
		if err != nil {
			return fmt.Errorf("failed to open trust store: %w", err)
		}

		if trustFromJWKS != "" {
			return runTrustImport(cmd.OutOrStdout(), cmd.InOrStdin(), store, trustFromJWKS, trustIssuer)
		}

		pub := ""
		switch {
		case trustFromJWK != "":
			pub, err = publicKeyFromJWKFile(trustFromJWK)
			if err != nil {
				return err
			}
		case len(args) == 1:
			pub = args[0]
		default:
			return fmt.Errorf("provide a hex public key or use --from-jwk")
		}
		return runTrustAdd(cmd.OutOrStdout(), store, pub, trustIssuer)
	},
}

var trustListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trusted issuer keys",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := trust.NewFileStore(trustDir)
		if err != nil {
			return fmt.Errorf("failed to open trust store: %w", err)
		}
		return runTrustList(cmd.OutOrStdout(), store)
	},
}

var trustRemoveCmd = &cobra.Command{
	Use:   "remove <did>",
	Short: "Stop trusting an issuer key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := trust.NewFileStore(trustDir)
		if err != nil {
			return fmt.Errorf("failed to open trust store: %w", err)
		}
		return runTrustRemove(cmd.OutOrStdout(), store, args[0])
	},
}

var trustExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print all trusted keys as a JWK Set",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := trust.NewFileStore(trustDir)
		if err != nil {
			return fmt.Errorf("failed to open trust store: %w", err)
		}
		return runTrustExport(cmd.OutOrStdout(), store)
	},
}

func runTrustAdd(out io.Writer, store trust.Store, publicKeyHex, issuerID string) error {
	keyDID, err := store.Add(publicKeyHex)
	if err != nil {
		return fmt.Errorf("failed to add key: %w", err)
	}
	fmt.Fprintf(out, "✅ Added key: %s\n", keyDID)

	if issuerID != "" {
		if err := store.AddIssuerMapping(issuerID, keyDID); err != nil {
			return fmt.Errorf("failed to map issuer: %w", err)
		}
		fmt.Fprintf(out, "   Mapped to issuer: %s\n", issuerID)
	}
	return nil
}

func runTrustImport(out io.Writer, stdin io.Reader, store trust.Store, source, issuerID string) error {
	r := stdin
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("failed to read JWKS: %w", err)
		}
		defer f.Close()
		r = f
	}

	set, err := trust.ReadJWKS(r)
	if err != nil {
		return err
	}
	dids, err := trust.ImportJWKS(store, set)
	if err != nil {
		return fmt.Errorf("failed to add keys: %w", err)
	}

	fmt.Fprintf(out, "✅ Added %d key(s) from JWKS\n", len(dids))
	for _, d := range dids {
		fmt.Fprintf(out, "   - %s\n", d)
		if issuerID != "" {
			if err := store.AddIssuerMapping(issuerID, d); err != nil {
				return fmt.Errorf("failed to map issuer: %w", err)
			}
		}
	}
	if issuerID != "" {
		fmt.Fprintf(out, "   Mapped to issuer: %s\n", issuerID)
	}
	return nil
}

func runTrustExport(out io.Writer, store trust.Store) error {
	set, err := trust.ExportJWKS(store)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JWKS: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func runTrustList(out io.Writer, store *trust.FileStore) error {
	entries, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No trusted keys in store.")
		fmt.Fprintln(out, "\nAdd keys with:")
		fmt.Fprintln(out, "  badgecore trust add <public-key-hex>")
		return nil
	}

	fmt.Fprintf(out, "🔑 Trusted Issuer Keys (%d):\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(out, "  DID: %s\n", e.DID)
		fmt.Fprintf(out, "    Public Key: %s\n", e.PublicKeyHex)
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Trust store location: %s\n", store.Dir())
	return nil
}

func runTrustRemove(out io.Writer, store trust.Store, keyDID string) error {
	if err := store.Remove(keyDID); err != nil {
		if errors.Is(err, trust.ErrKeyNotFound) {
			return fmt.Errorf("key not found: %s", keyDID)
		}
		return fmt.Errorf("failed to remove key: %w", err)
	}
	fmt.Fprintf(out, "✅ Removed key: %s\n", keyDID)
	return nil
}

func publicKeyFromJWKFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var key jose.JSONWebKey
	if err := json.Unmarshal(data, &key); err != nil {
		return "", fmt.Errorf("failed to parse JWK: %w", err)
	}

	switch k := key.Key.(type) {
	case ed25519.PublicKey:
		return hex.EncodeToString(k), nil
	case ed25519.PrivateKey:
		return "", errors.New("refusing to add a private JWK; use the public key file")
	default:
		return "", errors.New("JWK is not an Ed25519 key")
	}
}

func init() {
	rootCmd.AddCommand(trustCmd)
	trustCmd.AddCommand(trustAddCmd)
	trustCmd.AddCommand(trustListCmd)
	trustCmd.AddCommand(trustRemoveCmd)
	trustCmd.AddCommand(trustExportCmd)

	trustCmd.PersistentFlags().StringVar(&trustDir, "trust-dir", "", "Trust store directory (default $BADGECORE_TRUST_PATH or ~/.badgecore/trust)")
	trustAddCmd.Flags().StringVar(&trustFromJWK, "from-jwk", "", "Read the public key from a JWK file")
	trustAddCmd.Flags().StringVar(&trustFromJWKS, "from-jwks", "", "Import a JWK Set file, or '-' for stdin")
	trustAddCmd.Flags().StringVar(&trustIssuer, "issuer", "", "Map the key to this issuer id")
}
