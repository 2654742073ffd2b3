// bbstats-setup applies the database schema. Safe to run repeatedly; every
// statement is idempotent.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/scrypster/bbstats/internal/config"
	"github.com/scrypster/bbstats/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "YAML config file path")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("bbstats-setup: %v", err)
	}
}

func run(configPath string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfigFile(configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return err
	}

	store, err := postgres.NewStore(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Setup(context.Background()); err != nil {
		return err
	}
	fmt.Println("schema applied")
	return nil
}
