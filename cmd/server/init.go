package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/johann/primevista/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize server configuration",
	Long:  "Interactive wizard to configure the site, uploads and admin access.",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadForEdit(configFile, out)
	if err != nil {
		return err
	}

	if err := wizard(bufio.NewReader(cmd.InOrStdin()), out, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(out, "Configuration saved!")
	fmt.Fprintf(out, "Config file: %s\n", cfg.Path())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Create the database and start the server with:")
	fmt.Fprintln(out, "  primevista --init-db")
	fmt.Fprintln(out, "  primevista serve")
	return nil
}

// loadForEdit reads the config file without environment overrides. An
// unreadable file is replaced by defaults that still save to path.
func loadForEdit(path string, out io.Writer) (*config.ServerConfig, error) {
	cfg, err := config.LoadFile(path)
	if err == nil {
		return cfg, nil
	}
	fmt.Fprintf(out, "Ignoring unreadable config: %v\n\n", err)
	return config.New(path)
}

// wizard walks through every setting, keeping the current value when the
// answer is empty.
func wizard(reader *bufio.Reader, out io.Writer, cfg *config.ServerConfig) error {
	fmt.Fprintln(out, "primevista configuration wizard")
	fmt.Fprintln(out, "===============================")
	fmt.Fprintln(out)

	section(out, "Site")
	cfg.SiteTitle = prompt(reader, out, "Site title", cfg.SiteTitle, "PrimeVista")
	cfg.Host = prompt(reader, out, "Listen host", cfg.Host, "0.0.0.0")
	cfg.Port = promptInt(reader, out, "Listen port", cfg.Port, 5000)
	cfg.DBPath = prompt(reader, out, "Database path", cfg.DBPath, "primevista.db")
	cfg.StaticDir = prompt(reader, out, "Static directory", cfg.StaticDir, "./static")
	cfg.MetricsPort = promptInt(reader, out, "Metrics port (0 disables)", cfg.MetricsPort, 0)
	cfg.Compression = promptYesNo(reader, out, "Compress responses with brotli?", cfg.Compression)
	fmt.Fprintln(out)

	section(out, "Uploads")
	cfg.MaxUploadMB = promptInt(reader, out, "Maximum image size in MB", cfg.MaxUploadMB, 10)
	if promptYesNo(reader, out, "Store uploads in S3?", cfg.S3.Enabled()) {
		cfg.S3.Endpoint = prompt(reader, out, "S3 endpoint URL (empty for AWS)", cfg.S3.Endpoint, "")
		cfg.S3.Bucket = prompt(reader, out, "S3 bucket name", cfg.S3.Bucket, "primevista-uploads")
		cfg.S3.AccessKey = prompt(reader, out, "S3 access key", cfg.S3.AccessKey, "")
		cfg.S3.SecretKey = promptSecret(reader, out, "S3 secret key", cfg.S3.SecretKey)
		cfg.S3.Region = prompt(reader, out, "S3 region", cfg.S3.Region, "us-east-1")
		cfg.S3.PublicURL = prompt(reader, out, "Public URL of the bucket (optional)", cfg.S3.PublicURL, "")
	} else {
		cfg.S3 = config.S3Config{Region: cfg.S3.Region}
	}
	fmt.Fprintln(out)

	section(out, "Admin access")
	regenerate := cfg.AdminToken != "" && promptYesNo(reader, out, "Regenerate admin token?", false)
	changed, err := ensureSecrets(cfg, regenerate)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(out, "Admin token: %s\n", cfg.AdminToken)
	} else {
		fmt.Fprintln(out, "Keeping existing admin token (see 'primevista token show').")
	}
	fmt.Fprintln(out)
	return nil
}

func section(out io.Writer, title string) {
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, strings.Repeat("-", len(title)))
}

func prompt(reader *bufio.Reader, out io.Writer, label, current, defaultVal string) string {
	displayDefault := current
	if displayDefault == "" {
		displayDefault = defaultVal
	}

	if displayDefault != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, displayDefault)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		if current != "" {
			return current
		}
		return defaultVal
	}
	return input
}

func promptInt(reader *bufio.Reader, out io.Writer, label string, current, defaultVal int) int {
	cur := ""
	if current != 0 {
		cur = strconv.Itoa(current)
	}
	for {
		answer := prompt(reader, out, label, cur, strconv.Itoa(defaultVal))
		n, err := strconv.Atoi(answer)
		if err == nil {
			return n
		}
		fmt.Fprintf(out, "%q is not a number\n", answer)
		if _, err := reader.Peek(1); err != nil {
			return current
		}
	}
}

func promptSecret(reader *bufio.Reader, out io.Writer, label, current string) string {
	if current != "" {
		fmt.Fprintf(out, "%s [****hidden****]: ", label)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return current
	}
	return input
}

func promptYesNo(reader *bufio.Reader, out io.Writer, label string, defaultVal bool) bool {
	defaultStr := "y/N"
	if defaultVal {
		defaultStr = "Y/n"
	}

	fmt.Fprintf(out, "%s [%s]: ", label, defaultStr)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))

	if input == "" {
		return defaultVal
	}

	return input == "y" || input == "yes"
}
