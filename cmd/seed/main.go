// Command seed provisions the permission catalogue and the protected "admin"
// and "user" roles. It is safe to run repeatedly.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sarvbloom/sarv-api/internal/config"
	"github.com/sarvbloom/sarv-api/internal/infra"
	"github.com/sarvbloom/sarv-api/internal/logging"
	"github.com/sarvbloom/sarv-api/internal/rbac"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.AppName, cfg.LogLevel)
	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("seeding roles and permissions")
	if err := rbac.Seed(ctx, rbac.NewPostgresRepository(db)); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("seeding completed")
}
