package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/confbadge/badgecore/pkg/bake"
	"github.com/confbadge/badgecore/pkg/config"
	"github.com/confbadge/badgecore/pkg/credential"
)

var (
	bakeLegacy    bool
	bakeVerifyURL string
	bakeOut       string
	extractJSON   bool
)

var bakeCmd = &cobra.Command{
	Use:   "bake <svg> <credential>",
	Short: "Embed a signed credential in an SVG badge image",
	Long: `Embed a signed credential in an SVG badge image.

The credential file holds either a JSON credential with a Data Integrity
proof or a compact JWT. By default the payload is embedded as an
<openbadges:credential> element. With --legacy it is embedded as an
<openbadges:assertion> element with a verify URL, for older readers.`,
	Example: `  # Bake a Data Integrity credential
  badgecore bake badge.svg speaker.json --out speaker.svg

  # Bake a JWT using the legacy element
  badgecore bake badge.svg speaker.jwt --legacy --verify-url https://conf.example.org/verify/42`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		legacy := bakeLegacy || cfg.Baking.Legacy
		verifyURL := bakeVerifyURL
		if verifyURL == "" {
			verifyURL = cfg.Baking.VerifyURL
		}
		return runBake(cmd.OutOrStdout(), args[0], args[1], legacy, verifyURL, bakeOut)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <svg>",
	Short: "Print the credential embedded in an SVG badge image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd.OutOrStdout(), args[0], extractJSON)
	},
}

func runBake(out io.Writer, svgPath, credPath string, legacy bool, verifyURL, outPath string) error {
	svg, err := os.ReadFile(svgPath)
	if err != nil {
		return fmt.Errorf("failed to read svg: %w", err)
	}
	raw, err := os.ReadFile(credPath)
	if err != nil {
		return fmt.Errorf("failed to read credential: %w", err)
	}

	artifact, err := readArtifact(raw)
	if err != nil {
		return err
	}

	var baked []byte
	if legacy {
		baked, err = bake.BakeLegacy(svg, artifact, verifyURL)
	} else {
		baked, err = bake.Bake(svg, artifact)
	}
	if err != nil {
		return err
	}

	if outPath == "" {
		_, err := out.Write(baked)
		return err
	}
	if err := os.WriteFile(outPath, baked, 0644); err != nil {
		return fmt.Errorf("failed to write baked svg: %w", err)
	}
	fmt.Fprintf(out, "✅ Baked badge saved to %s\n", outPath)
	return nil
}

// readArtifact treats input starting with '{' as a JSON credential and
// anything else as a compact JWT.
func readArtifact(raw []byte) (bake.Artifact, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		doc, err := credential.ParseDocument(trimmed)
		if err != nil {
			return bake.Artifact{}, err
		}
		return bake.CredentialArtifact(doc), nil
	}
	return bake.TokenArtifact(string(trimmed)), nil
}

func runExtract(out io.Writer, svgPath string, asJSON bool) error {
	svg, err := os.ReadFile(svgPath)
	if err != nil {
		return fmt.Errorf("failed to read svg: %w", err)
	}

	ext := bake.Extract(svg)
	if !ext.Found() {
		return fmt.Errorf("no badge found in %s", svgPath)
	}

	if asJSON {
		data, err := json.MarshalIndent(map[string]any{
			"format":          ext.Format.String(),
			"credential":      ext.Assertion,
			"token":           ext.Token,
			"verificationUrl": ext.VerificationURL,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if ext.Token != "" {
		fmt.Fprintln(out, ext.Token)
		return nil
	}
	data, err := json.MarshalIndent(ext.Assertion, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func init() {
	rootCmd.AddCommand(bakeCmd)
	rootCmd.AddCommand(extractCmd)

	bakeCmd.Flags().BoolVar(&bakeLegacy, "legacy", false, "Use the legacy <openbadges:assertion> element")
	bakeCmd.Flags().StringVar(&bakeVerifyURL, "verify-url", "", "Verify URL for legacy baking (default: from config)")
	bakeCmd.Flags().StringVarP(&bakeOut, "out", "o", "", "Output file (default: stdout)")

	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print format and payload as JSON")
}
