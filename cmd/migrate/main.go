package main

import (
	"log"
	"os"

	"smartbin-backend/internal/database"

	"github.com/joho/godotenv"
)

// Standalone migration runner for deployments where the schema should be
// applied before the server boots. Pass -seed to also create the default
// user accounts.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("✅ Migration completed successfully")

	seed := false
	for _, arg := range os.Args[1:] {
		if arg == "-seed" || arg == "--seed" {
			seed = true
		}
	}
	if seed {
		if err := database.SeedUsers(db); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Println("✅ Default users seeded")
	}
}
