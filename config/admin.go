// config/admin.go
package config

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/plantify/plantify_backend/models"
	"github.com/plantify/plantify_backend/utils"
)

// EnsureAdminUser creates the admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD when it does not exist yet.
func EnsureAdminUser(client *mongo.Client) {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("Admin credentials missing in environment variables, skipping admin setup")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collection := GetCollection(client, "users")

	err := collection.FindOne(ctx, bson.M{"email": adminEmail}).Err()
	if err == nil {
		log.Println("Admin user already exists")
		return
	}
	if err != mongo.ErrNoDocuments {
		log.Printf("Failed to check for admin user: %v", err)
		return
	}

	hashedPassword, err := utils.HashPassword(adminPassword)
	if err != nil {
		log.Printf("Failed to hash admin password: %v", err)
		return
	}

	now := time.Now()
	admin := models.User{
		FullName:     "Plantify Admin",
		Email:        adminEmail,
		Password:     hashedPassword,
		Role:         models.RoleAdmin,
		IsVerified:   true,
		AuthProvider: models.AuthProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := collection.InsertOne(ctx, admin); err != nil {
		log.Printf("Failed to create admin user: %v", err)
		return
	}

	log.Println("Admin user created successfully")
}
