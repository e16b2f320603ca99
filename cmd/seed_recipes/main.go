package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/dolcelab/pasticceria-backend/config"
	"github.com/dolcelab/pasticceria-backend/internal/database"
	"github.com/dolcelab/pasticceria-backend/internal/service"
)

// Seeds the recipes table from a JSON file. The file holds either a
// single recipe object or an array of them, in the same shape the
// /recipes/upload endpoint accepts.
func main() {
	file := flag.String("file", "seed/ricette.json", "Path to the recipes JSON file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewGormDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	s3Config, err := config.NewS3Config(context.Background(), cfg)
	if err != nil {
		log.Printf("S3 not configured, uploaded images disabled: %v", err)
	}
	imageService := service.NewImageService(cfg, s3Config)
	recipes := service.NewRecipeService(db, imageService)

	result, err := recipes.ImportRecipes(context.Background(), data)
	if err != nil {
		log.Fatalf("Failed to import recipes: %v", err)
	}

	log.Printf("Seeding complete: %d imported, %d failed", result.Imported, result.Failed)
}
