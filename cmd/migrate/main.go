package main

import (
	"log"

	"github.com/dolcelab/pasticceria-backend/config"
	"github.com/dolcelab/pasticceria-backend/internal/database"
)

// Runs the schema migration without starting the server, for deploy
// pipelines that migrate before rolling the new binary.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if _, err := database.NewGormDB(cfg); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration complete")
}
