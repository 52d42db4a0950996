package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	userDatamodel "snapexpense/internal/core/datamodel/user"
	"snapexpense/internal/expense"
	"snapexpense/internal/snapshot"
	"snapexpense/internal/store/local"
	mongostore "snapexpense/internal/store/mongo"
	"snapexpense/internal/user"
	"snapexpense/pkg/logger"
)

var clearData bool

var seedCmd = &cobra.Command{
	RunE:  runSeeder,
	Use:   "seed",
	Short: "install the demo accounts into the configured store",
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
}

func runSeeder(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	logger.Init(cfg.Logging.Format, cfg.Logging.Level)
	lg := logger.LoggerWrapper()
	seeds := user.SeedUsers(cfg.Security.BCryptCost)

	if cfg.Store.CloudMode() {
		ctx := context.Background()
		mongoStore, err := mongostore.NewStore(cfg.Store.MongoURI, cfg.Store.Database, cfg.Store.ConnectTimeout)
		if err != nil {
			log.Fatalf("seed: connect: %v", err)
		}
		defer mongoStore.Close()

		users := mongostore.NewCollection[userDatamodel.User](mongoStore, user.CollectionName, lg)
		for _, u := range seeds {
			if err := users.Put(ctx, u.ID, u); err != nil {
				log.Fatalf("seed: put %s: %v", u.ID, err)
			}
		}
		log.Printf("seeded %d demo accounts into %s", len(seeds), cfg.Store.Database)
		return nil
	}

	snapshots, err := snapshot.Open(cfg.LocalStore.Path, cfg.LocalStore.MaxBytes)
	if err != nil {
		log.Fatalf("seed: open snapshot store: %v", err)
	}
	defer snapshots.Close()

	if clearData {
		for _, key := range []string{user.SnapshotKey, expense.SnapshotKey} {
			if err := snapshots.Delete(key); err != nil {
				log.Fatalf("seed: clear %s: %v", key, err)
			}
		}
	}

	users := local.NewCollection(snapshots, user.SnapshotKey,
		func(u userDatamodel.User) string { return u.ID },
		local.WithSeed(seeds),
		local.WithLogger[userDatamodel.User](lg))
	for _, u := range seeds {
		if err := users.Put(context.Background(), u.ID, u); err != nil {
			log.Fatalf("seed: put %s: %v", u.ID, err)
		}
	}
	users.Flush()

	log.Printf("seeded %d demo accounts into %s", len(seeds), cfg.LocalStore.Path)
	return nil
}
