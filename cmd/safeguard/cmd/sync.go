package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flockops/safeguard/internal/importer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the cached vendor catalogs",
	Long: `Fetch the background check packages, tags and training curricula from the
vendor and replace the local catalog cache. The catalogs feed the package and
survey pickers.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	rt, err := buildRuntime(logger)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := importer.SyncCatalogs(cmd.Context(), rt.vendor, rt.store, logger); err != nil {
		return err
	}

	packages, err := rt.store.Packages(cmd.Context())
	if err != nil {
		return err
	}
	types, err := rt.store.SurveyTypes(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("synced %d packages, %d survey types\n", len(packages), len(types))
	return nil
}
