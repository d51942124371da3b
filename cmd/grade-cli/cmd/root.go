package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Yubo-Cao/grade-dashboard/lib/configutil"
	"github.com/Yubo-Cao/grade-dashboard/lib/gradestore"
	"github.com/Yubo-Cao/grade-dashboard/lib/scrapers/synergy"
	"github.com/Yubo-Cao/grade-dashboard/services/gradebook"

	"github.com/spf13/cobra"
)

type Config struct {
	PortalBaseUrl string `json:"portal_baseurl"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	// SnapshotDb is the sqlite file score history is kept in. Empty
	// disables history.
	SnapshotDb string `json:"snapshot_db"`
}

var configPath string

var (
	config  Config
	store   *synergy.Store
	service *gradebook.Service
)

var rootCmd = &cobra.Command{
	Use:   "grade-cli",
	Short: "grade-cli scrapes a student portal gradebook and derives per-assignment score analytics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = configutil.ReadConfig[Config](configPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", configPath, err)
		}

		store, err = synergy.NewStore(synergy.StoreOptions{
			BaseURL: config.PortalBaseUrl,
		})
		if err != nil {
			return err
		}

		var snapshots *gradestore.Store
		if config.SnapshotDb != "" {
			db, err := gradestore.Open(config.SnapshotDb)
			if err != nil {
				return fmt.Errorf("opening %s: %w", config.SnapshotDb, err)
			}
			snapshots = &db
		}

		service = gradebook.NewService(store, snapshots)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		store.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "path to the configuration file")
}

func credentials() gradebook.Credentials {
	return gradebook.Credentials{Username: config.Username, Password: config.Password}
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
