package database

import (
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func SeedUsers(db *sqlx.DB) error {
	// Check if users already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding test users...")

	operatorPassword, err := bcrypt.GenerateFromPassword([]byte("operator123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	adminPassword, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []map[string]interface{}{
		{
			"id":         uuid.New().String(),
			"email":      "operator@smartbin.io",
			"password":   string(operatorPassword),
			"first_name": "Olivia",
			"last_name":  "Operator",
			"role":       "operator",
		},
		{
			"id":         uuid.New().String(),
			"email":      "admin@smartbin.io",
			"password":   string(adminPassword),
			"first_name": "Ada",
			"last_name":  "Admin",
			"role":       "admin",
		},
	}

	for _, user := range users {
		query := `
			INSERT INTO users (id, email, password, first_name, last_name, role)
			VALUES (:id, :email, :password, :first_name, :last_name, :role)
		`
		if _, err := db.NamedExec(query, user); err != nil {
			return err
		}
		log.Printf("  ✓ Created user: %s (%s)", user["email"], user["role"])
	}

	log.Println("✓ Successfully seeded test users")
	log.Println("  📧 Operator: operator@smartbin.io / operator123")
	log.Println("  📧 Admin:    admin@smartbin.io / admin123")
	return nil
}
