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

func main() {
	// Load environment variables from .env file
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
	} else {
		log.Println("DATABASE_URL not set; run history will not be persisted")
	}

	webApp, err := ui.NewApp(appContainer)
	if err != nil {
		log.Fatalf("Failed to create web UI: %v", err)
	}

	log.Printf("metastats web UI on http://localhost:%s", cfg.Server.Port)
	log.Fatal(webApp.Start(":" + cfg.Server.Port))
}
