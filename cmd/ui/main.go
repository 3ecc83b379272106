package main

import (
	"log"

	"metastats/internal/config"
	"metastats/internal/container"
	"metastats/ui"

	"github.com/joho/godotenv"
)

// Runs only the web shell, without run persistence.
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

	webApp, err := ui.NewApp(appContainer)
	if err != nil {
		log.Fatal("Failed to create web UI:", err)
	}

	log.Printf("metastats web UI on http://localhost:%s", cfg.Server.Port)
	log.Fatal(webApp.Start(":" + cfg.Server.Port))
}
