package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/crispai/crisp/backend/repository"
	"github.com/crispai/crisp/backend/services"
)

func main() {
	// Setup structured logging with JSON format
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	config := services.LoadConfig()

	// Create server
	server := services.NewServer(config)

	// Initialize database connection
	if config.Database.URI != "" {
		client, err := repository.Connect(context.Background(), config.Database.URI)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer client.Disconnect(context.Background())
		slog.Info("Connected to database", "database", config.Database.Name)

		repo := repository.NewMongoRepository(client.Database(config.Database.Name))
		if err := repo.EnsureIndexes(context.Background()); err != nil {
			slog.Error("Failed to ensure indexes", "error", err)
		}
		server.SetDatabase(client, repo)

		// Seed the database with demo accounts
		if config.Database.Seed {
			seeder := services.NewDatabaseSeeder(repo)
			if err := seeder.SeedDatabase(); err != nil {
				slog.Error("Failed to seed database", "error", err)
			}
		}
	} else {
		slog.Warn("Database URI not configured, running without database")
	}

	// Initialize services
	if err := server.InitializeServices(); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Start server (blocks until shutdown)
	server.Start()
}
