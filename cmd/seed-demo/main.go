package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/tutoria-backend/internal/config"
	"github.com/stemsi/tutoria-backend/internal/database"
	"github.com/stemsi/tutoria-backend/internal/logger"
	"github.com/stemsi/tutoria-backend/internal/repository"
	"github.com/stemsi/tutoria-backend/internal/seed"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "seed-demo")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	fmt.Println("=== Seeding demo catalog ===")

	res, err := seed.Demo(ctx, repository.NewPostgresStore(pool), time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Seed failed")
	}

	fmt.Printf("Classes created: %d, already present: %d\n", res.ClassesCreated, res.ClassesSkipped)
	fmt.Printf("Instructor:   %s\n", seed.InstructorID)
	fmt.Printf("Guardian:     %s\n", seed.GuardianID)
	for i, id := range seed.LearnerIDs {
		fmt.Printf("Learner %d:    %s\n", i+1, id)
	}
	fmt.Printf("Open class:   %s\n", seed.OpenClassID)
	fmt.Printf("Course class: %s (course %s)\n", seed.CourseClassID, seed.CourseProductID)
	fmt.Println("\nIssue a guardian token with:")
	fmt.Printf("  go run ./cmd/issue-token -actor %s -role GUARDIAN\n", seed.GuardianID)
}
