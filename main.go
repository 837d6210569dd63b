package main

import (
	"log"

	"github.com/joho/godotenv"

	"licensetable/cmd"
	"licensetable/internal/logger"
	_ "licensetable/internal/ocr/tesseract"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Replaced by the configured logger once a command loads its config.
	if err := logger.Setup(logger.DefaultConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cmd.Execute()
}
