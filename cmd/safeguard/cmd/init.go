package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a safeguard configuration",
	Long: `Create a starter .safeguard.yaml in the current directory.
The vendor access token is left blank; set it in the file or through
SAFEGUARD_VENDOR_ACCESS_TOKEN.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(_ *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	configPath := filepath.Join(cwd, ".safeguard.yaml")

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration already exists, use --force to overwrite")
	}

	defaultConfig := `# Safeguard Configuration

server:
  listen: ":8080"
  # webhook_secret: ""

vendor:
  base_url: "https://safetysystem.ministrysafe.com/api/v2"
  access_token: ""
  rate_per_second: 5
  burst: 10

database:
  path: "safeguard.db"

# Workflow types activated for observations without an in-flight request.
# Zero disables auto-creation.
workflow:
  check_type_id: 0
  training_type_id: 0

log:
  level: info
  format: auto
`

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil { //nolint:gosec // Config file needs to be readable
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println("Initialized safeguard configuration in", cwd)
	fmt.Println("Configuration file: .safeguard.yaml")

	return nil
}
