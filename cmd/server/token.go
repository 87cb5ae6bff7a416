package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/johann/primevista/internal/config"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the admin token",
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show or generate the admin token",
	Long: `Show the admin token, or generate one if it doesn't exist.
A session secret is generated alongside it so admin sessions survive restarts.`,
	RunE: runTokenShow,
}

var tokenRegenerate bool

func init() {
	tokenShowCmd.Flags().BoolVar(&tokenRegenerate, "regenerate", false, "Replace the existing token")
	tokenCmd.AddCommand(tokenShowCmd)
}

func runTokenShow(cmd *cobra.Command, args []string) error {
	// The file alone: env-supplied secrets must not end up in it.
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	changed, err := ensureSecrets(cfg, tokenRegenerate)
	if err != nil {
		return err
	}
	if changed {
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Generated new token (saved to %s):\n", cfg.Path())
	}

	fmt.Fprintln(cmd.OutOrStdout(), cfg.AdminToken)
	return nil
}

// ensureSecrets fills in a missing admin token and session secret. It
// reports whether cfg changed.
func ensureSecrets(cfg *config.ServerConfig, regenerate bool) (bool, error) {
	changed := false
	if cfg.AdminToken == "" || regenerate {
		token, err := generateToken()
		if err != nil {
			return false, fmt.Errorf("failed to generate token: %w", err)
		}
		cfg.AdminToken = token
		changed = true
	}
	if cfg.SessionSecret == "" {
		secret, err := generateToken()
		if err != nil {
			return false, fmt.Errorf("failed to generate session secret: %w", err)
		}
		cfg.SessionSecret = secret
		changed = true
	}
	return changed, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
