package main

import (
	"context"
	"fleet-map-service/internal/adapters/repositories"
	"fleet-map-service/internal/config"
	"fleet-map-service/internal/platform/db"
	"fleet-map-service/internal/platform/logger"
	stdlog "log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// dbtool creates the Postgres POI schema and loads the seed file.
func main() {
	log, err := logger.New("fleet-map-dbtool", config.Get("LOG_LEVEL", "info"), "console")
	if err != nil {
		stdlog.Fatal(err)
	}
	defer func() { _ = log.Sync() }()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found (using environment variables)")
	}

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/pois.json")
	if err := initAndSeed(ctx, pool, seedPath, log); err != nil {
		log.Fatal("init and seed", zap.Error(err))
	}
}

func initAndSeed(ctx context.Context, pool *pgxpool.Pool, seedPath string, log *zap.Logger) error {
	log.Info("initializing database schema")
	if err := repositories.InitSchema(ctx, pool); err != nil {
		return err
	}
	log.Info("schema ready")

	log.Info("seeding database", zap.String("path", seedPath))
	n, err := repositories.SeedFromJSON(ctx, pool, seedPath)
	if err != nil {
		return err
	}
	log.Info("seeding complete", zap.Int("pois", n))
	return nil
}
