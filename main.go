package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bryan-buckman/watchdeck/internal/config"
	"github.com/bryan-buckman/watchdeck/internal/database"
	"github.com/bryan-buckman/watchdeck/internal/engine"
	"github.com/bryan-buckman/watchdeck/internal/hub"
	"github.com/bryan-buckman/watchdeck/internal/query"
	"github.com/bryan-buckman/watchdeck/internal/seed"
	"github.com/bryan-buckman/watchdeck/internal/server"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "watchdeck",
		Short:        "Monitoring dashboard overlay for watched web resources",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Populate an empty database with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seedDemo(configPath)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore(cfg config.Config) (database.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return database.NewPostgres(cfg.Database.DSN)
	default:
		return database.New(cfg.Database.Path)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if store.SupportsHighConcurrency() {
		log.Printf("Using %s storage", store.DatabaseType())
	} else {
		log.Printf("Using %s storage (serialized writes)", store.DatabaseType())
	}

	h := hub.New()
	defer h.Close()
	eng := engine.New(store, h)
	q := query.New(store)
	srv := server.New(eng, q, h)

	// Trim change history nightly, off-peak.
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	c := cron.New()
	c.AddFunc("0 2 * * *", func() {
		pruned, err := eng.PruneChanges(retention)
		if err != nil {
			log.Printf("Retention: %v", err)
			return
		}
		if pruned > 0 {
			log.Printf("Retention: pruned %d change records older than %d days", pruned, cfg.RetentionDays)
		}
	})
	c.Start()
	defer c.Stop()

	return srv.Start(cfg.Addr)
}

func seedDemo(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	seeded, err := seed.Seed(store)
	if err != nil {
		return err
	}
	if !seeded {
		fmt.Println("Database already has watches; nothing to do")
		return nil
	}
	watches, err := store.CountWatches()
	if err != nil {
		return err
	}
	folders, err := store.CountFolders()
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d watches in %d folders\n", watches, folders)
	return nil
}
