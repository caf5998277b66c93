package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/crispai/crisp/backend/models"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo Store
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(repo Store) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

// SeedDatabase seeds the default accounts (idempotent). Only non-admin
// demo credentials are created; production deployments disable seeding.
func (s *DatabaseSeeder) SeedDatabase() error {
	ctx := context.Background()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users := []models.User{
		{
			Email:    "interviewer@example.com",
			Password: string(hashedPassword),
			Name:     "Demo Interviewer",
			Role:     models.RoleInterviewer,
		},
		{
			Email:    "candidate@example.com",
			Password: string(hashedPassword),
			Name:     "Demo Candidate",
			Role:     models.RoleInterviewee,
		},
	}

	for _, user := range users {
		if err := s.seedUser(ctx, user); err != nil {
			slog.Error("Failed to seed user", "email", user.Email, "error", err)
		}
	}

	slog.Info("Database seeding completed")
	return nil
}

// seedUser seeds a single user (idempotent)
func (s *DatabaseSeeder) seedUser(ctx context.Context, user models.User) error {
	existingUser, err := s.repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", user.Email, err)
	}

	if existingUser != nil {
		slog.Info("User already exists, skipping", "email", user.Email)
		return nil
	}

	if err := s.repo.CreateUser(ctx, &user); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}

	slog.Info("Created user", "email", user.Email, "role", user.Role)
	return nil
}
