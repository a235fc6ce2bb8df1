package main

import (
	"flag"
	"log"
	"strings"

	"go-accounting-ws/internal/config"
	"go-accounting-ws/internal/model"
	"go-accounting-ws/internal/repository"
	"go-accounting-ws/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "new password (min 6 characters)")
	flag.Parse()

	if *email == "" || len(*password) < 6 {
		flag.Usage()
		log.Fatal("❌ -email and a -password of at least 6 characters are required")
	}

	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, relying on system env")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DSN(), false)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	users := repository.NewUserRepo(db)

	// 3. Find user
	user, err := users.FindByEmail(strings.ToLower(strings.TrimSpace(*email)))
	if err != nil {
		log.Fatalf("❌ User %s not found in database: %v", *email, err)
	}

	// 4. Hash new password
	var hashed model.User
	if err := hashed.SetPassword(*password); err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}

	// 5. Update, and sign out every open session
	if err := users.UpdatePassword(user.ID, hashed.Password); err != nil {
		log.Fatalf("❌ Failed to update password in DB: %v", err)
	}
	if err := users.UpdateTokenVersion(user.ID, uuid.NewString()); err != nil {
		log.Fatalf("❌ Failed to revoke sessions: %v", err)
	}

	log.Printf("✅ Success! Password for %s has been reset", user.Email)
}
