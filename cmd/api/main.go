package main

import (
	"context"
	"log"

	"metastats/internal/config"
	"metastats/internal/container"
	"metastats/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Runs only the JSON API shell.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appContainer, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}

	ctx := context.Background()
	defer appContainer.Shutdown(ctx)

	if cfg.Database.Enabled {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := appContainer.InitWithDatabase(ctx, db); err != nil {
			log.Fatalf("Failed to initialize container with database: %v", err)
		}
	}

	server := ui.NewServer(appContainer)
	log.Printf("metastats API on http://localhost:%s", cfg.Server.Port)
	log.Fatal(server.Start(":" + cfg.Server.Port))
}
