// Package main is the entry point for the badgecore CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

// now is the only place the CLI reads the wall clock.
var now = func() time.Time { return time.Now().UTC() }

var rootCmd = &cobra.Command{
	Use:   "badgecore",
	Short: "Open Badges 3.0 credential engine",
	Long: `Issue, sign, bake and verify Open Badges 3.0 achievement credentials.

Credentials are signed with Ed25519 keys identified by did:key, either as an
embedded Data Integrity proof (eddsa-jcs-2022) or as a compact JWT, and can
be baked into SVG badge images.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (default $BADGECORE_CONFIG or ./badgecore.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
