package main

import (
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/nutriscan/backend/internal/config"
	"github.com/nutriscan/backend/internal/database"
	"github.com/nutriscan/backend/internal/off"
	"github.com/nutriscan/backend/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database
	db, err := database.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Initialize the product lookup client
	client, err := off.NewClient(
		cfg.OpenFoodFacts.BaseURL,
		cfg.OpenFoodFacts.UserAgent,
		time.Duration(cfg.OpenFoodFacts.TimeoutSeconds)*time.Second,
	)
	if err != nil {
		log.Fatal("Failed to create product client:", err)
	}

	// Initialize and start server
	srv := server.New(db, client, cfg.Server.Debug)
	if err := srv.Start(cfg.Server.Port, cfg.Server.StaticDir); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
