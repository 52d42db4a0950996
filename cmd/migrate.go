package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"snapexpense/internal/snapshot"
)

var migrateCmd = &cobra.Command{
	RunE:  runMigration,
	Use:   "migrate",
	Short: "apply snapshot store schema migrations",
}

func runMigration(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	if err := snapshot.Migrate(cfg.LocalStore.Path); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	log.Printf("snapshot store migrated at %s", cfg.LocalStore.Path)
	return nil
}
