package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/confbadge/badgecore/pkg/badge"
	"github.com/confbadge/badgecore/pkg/config"
	"github.com/confbadge/badgecore/pkg/report"
	"github.com/confbadge/badgecore/pkg/trust"
)

var (
	verifyPublicKey string
	verifyJSON      bool
	verifyTrustDir  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify a credential, JWT or baked SVG badge",
	Long: `Verify a credential and print a per-check report.

The input may be credential JSON with a Data Integrity proof, a compact JWT,
or an SVG badge image carrying either of those. The public key is taken from
--public-key, then BADGECORE_PUBLIC_KEY / the config file, and finally from
the trust store using the verification method the input claims.

Exit codes:
  0 - credential is valid
  1 - credential is invalid or could not be checked`,
	Example: `  # Verify against an explicit key
  badgecore verify speaker.json --public-key d75a9801...

  # Verify a baked badge against the trust store, JSON output
  badgecore verify speaker.svg --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.Context(), cmd.OutOrStdout(), args[0], verifyPublicKey, verifyTrustDir, verifyJSON)
	},
}

func runVerify(ctx context.Context, out io.Writer, path, publicKeyHex, trustDir string, asJSON bool) error {
	input, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	pub, err := resolvePublicKey(input, publicKeyHex, trustDir)
	if err != nil {
		return err
	}

	v := badge.NewVerifier(badge.WithLogger(slog.Default()), badge.WithClock(now))
	rep := v.Verify(ctx, input, pub)

	if asJSON {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		printReport(out, rep)
	}

	if !rep.Valid {
		return errors.New("credential verification failed")
	}
	return nil
}

// resolvePublicKey picks the key to verify with. An explicit key wins, then
// the configured key, then the trust store entry for the claimed
// verification method.
func resolvePublicKey(input []byte, explicit, trustDir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	if cfg.Keys.PublicKey != "" || cfg.Keys.PrivateKey != "" {
		return cfg.PublicKeyHex()
	}

	vm, ok := badge.ClaimedVerificationMethod(input)
	if !ok {
		return "", errors.New("no public key: use --public-key, set " + config.EnvPublicKey + ", or trust the issuer key")
	}
	store, err := trust.NewFileStore(trustDir)
	if err != nil {
		return "", err
	}
	pub, err := store.PublicKeyHex(vm)
	if err != nil {
		return "", fmt.Errorf("issuer key %s: %w", vm, err)
	}
	slog.Debug("using trusted key", "verificationMethod", vm)
	return pub, nil
}

func printReport(out io.Writer, rep *report.Report) {
	for _, c := range rep.Checks {
		icon := "✅"
		switch c.Status {
		case report.StatusFailure:
			icon = "❌"
		case report.StatusSkipped:
			icon = "⏭️ "
		}
		line := fmt.Sprintf("%s %-9s %s", icon, c.Name, c.Status)
		if c.Message != "" {
			line += ": " + c.Message
		}
		fmt.Fprintln(out, line)

		if errs, ok := c.Details["errors"].([]string); ok {
			for _, e := range errs {
				fmt.Fprintf(out, "   - %s\n", e)
			}
		}
		if warnings, ok := c.Details["warnings"].([]string); ok {
			for _, w := range warnings {
				fmt.Fprintf(out, "   ⚠️  %s\n", w)
			}
		}
	}

	fmt.Fprintln(out)
	if rep.Valid {
		fmt.Fprintf(out, "✅ VALID (%s", rep.Format)
	} else {
		fmt.Fprintf(out, "❌ INVALID (%s", rep.Format)
	}
	if rep.Baking != "" {
		fmt.Fprintf(out, ", baked %s", rep.Baking)
	}
	fmt.Fprintln(out, ")")

	if !rep.Valid {
		var codes []string
		for _, f := range rep.Failures() {
			if code, ok := f.Details["code"].(string); ok {
				codes = append(codes, code)
			}
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(out, "   code: %s\n", code)
		}
	}
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyPublicKey, "public-key", "", "Hex Ed25519 public key of the issuer")
	verifyCmd.Flags().StringVar(&verifyTrustDir, "trust-dir", "", "Trust store directory (default $BADGECORE_TRUST_PATH or ~/.badgecore/trust)")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Print the full report as JSON")
}
