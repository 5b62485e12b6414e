package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/confbadge/badgecore/pkg/badge"
	"github.com/confbadge/badgecore/pkg/config"
)

const (
	formatDI  = "di"
	formatJWT = "jwt"
)

var (
	issueFormat     string
	issueSubject    string
	issueID         string
	issueValidFrom  string
	issueValidUntil string
	issueCreated    string
	issueName       string
	issueOut        string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a signed achievement credential",
	Long: `Issue a signed Open Badges 3.0 achievement credential.

Issuer and achievement details come from the config file. The signing key is
read from --key-file, BADGECORE_PRIVATE_KEY or the config file. When the
config has no issuer id, the issuer's did:key is used.`,
	Example: `  # Data Integrity proof, written to stdout
  badgecore issue --subject mailto:speaker@example.org

  # Compact JWT, written to a file
  badgecore issue --format jwt --subject mailto:speaker@example.org --out speaker.jwt

  # Explicit validity window
  badgecore issue --subject did:example:123 --valid-from 2025-01-01T00:00:00Z --valid-until 2026-01-01T00:00:00Z`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		privHex, err := loadPrivateKeyHex()
		if err != nil {
			return err
		}
		return runIssue(cmd.OutOrStdout(), cfg, privHex, issueOptions{
			format:     issueFormat,
			subject:    issueSubject,
			id:         issueID,
			name:       issueName,
			validFrom:  issueValidFrom,
			validUntil: issueValidUntil,
			created:    issueCreated,
			out:        issueOut,
		})
	},
}

type issueOptions struct {
	format     string
	subject    string
	id         string
	name       string
	validFrom  string
	validUntil string
	created    string
	out        string
}

func runIssue(out io.Writer, cfg *config.Config, privateKeyHex string, opts issueOptions) error {
	if opts.subject == "" {
		return fmt.Errorf("--subject is required")
	}
	if opts.format != formatDI && opts.format != formatJWT {
		return fmt.Errorf("invalid format %q (must be %s or %s)", opts.format, formatDI, formatJWT)
	}

	issuer, err := badge.NewIssuer(privateKeyHex)
	if err != nil {
		return err
	}

	stamp := now().Format(time.RFC3339)
	if opts.id == "" {
		opts.id = "urn:uuid:" + uuid.NewString()
	}
	if opts.validFrom == "" {
		opts.validFrom = stamp
	}
	if opts.created == "" {
		opts.created = stamp
	}
	if opts.validUntil == "" {
		opts.validUntil, err = cfg.ValidUntil(opts.validFrom)
		if err != nil {
			return err
		}
	}

	cc := cfg.CredentialConfig(opts.id, opts.subject, opts.validFrom, opts.validUntil)
	if opts.name != "" {
		cc.Name = opts.name
	}

	var data []byte
	switch opts.format {
	case formatDI:
		doc, err := issuer.IssueDataIntegrity(cc, opts.created)
		if err != nil {
			return err
		}
		data, err = json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %w", err)
		}
	case formatJWT:
		token, err := issuer.IssueJWT(cc)
		if err != nil {
			return err
		}
		data = []byte(token)
	}
	data = append(data, '\n')

	slog.Debug("credential issued", "id", opts.id, "format", opts.format, "issuer", issuer.DID())

	if opts.out == "" {
		_, err := out.Write(data)
		return err
	}
	if err := os.WriteFile(opts.out, data, 0644); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	fmt.Fprintf(out, "✅ Credential %s saved to %s\n", opts.id, opts.out)
	return nil
}

func init() {
	rootCmd.AddCommand(issueCmd)

	issueCmd.Flags().StringVar(&issueFormat, "format", formatDI, "Proof format: di (Data Integrity) or jwt")
	issueCmd.Flags().StringVar(&issueSubject, "subject", "", "Recipient id (did, mailto: or URL)")
	issueCmd.Flags().StringVar(&issueID, "id", "", "Credential id (default: random urn:uuid)")
	issueCmd.Flags().StringVar(&issueName, "name", "", "Credential name (default: from config)")
	issueCmd.Flags().StringVar(&issueValidFrom, "valid-from", "", "RFC 3339 start of validity (default: now)")
	issueCmd.Flags().StringVar(&issueValidUntil, "valid-until", "", "RFC 3339 end of validity (default: from config duration)")
	issueCmd.Flags().StringVar(&issueCreated, "created", "", "RFC 3339 proof creation time (default: now)")
	issueCmd.Flags().StringVarP(&issueOut, "out", "o", "", "Output file (default: stdout)")
	issueCmd.Flags().StringVar(&keyFile, "key-file", "", "Path to private key file (JWK)")
}
