package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
)

// Resets a member's password when they are locked out of the portal.
// Usage: go run scripts/fix_user_password.go <email> <password>
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run scripts/fix_user_password.go <email> <password>")
		os.Exit(1)
	}
	email := strings.ToLower(strings.TrimSpace(os.Args[1]))
	password := os.Args[2]
	if len(password) < 8 {
		fmt.Println("Password must be at least 8 characters")
		os.Exit(1)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Error generating hash: %v\n", err)
		os.Exit(1)
	}

	conf := config.New()
	client, err := databases.NewClient(conf)
	if err != nil {
		fmt.Printf("Error creating client: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	users := databases.NewUserDatabase(databases.NewDatabase(conf, client))
	res, err := users.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{
		"password":  string(hashedPassword),
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		fmt.Printf("Error updating password: %v\n", err)
		os.Exit(1)
	}
	if res.MatchedCount == 0 {
		fmt.Printf("No member found with email %s\n", email)
		os.Exit(1)
	}
	fmt.Printf("Password updated for %s\n", email)
}
