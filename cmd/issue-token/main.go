package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/stemsi/tutoria-backend/internal/config"
	"github.com/stemsi/tutoria-backend/internal/logger"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/service"
)

// issue-token signs an access token with the configured JWT secret. It is a
// development helper; production tokens come from the platform's login flow.
func main() {
	var actor, role string
	flag.StringVar(&actor, "actor", "", "Actor UUID (guardian, instructor or admin id)")
	flag.StringVar(&role, "role", string(model.RoleGuardian), "Role: ADMIN, INSTRUCTOR, GUARDIAN or LEARNER")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "issue-token")

	actorID, err := uuid.Parse(actor)
	if err != nil {
		log.Error().Err(err).Str("actor", actor).Msg("Invalid -actor")
		flag.Usage()
		os.Exit(2)
	}

	r := model.ParseRole(role)
	if !r.Valid() {
		log.Error().Str("role", role).Msg("Invalid -role")
		flag.Usage()
		os.Exit(2)
	}

	token, err := service.NewAuthService(cfg).GenerateToken(actorID, r)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	log.Debug().
		Str("actor_id", actorID.String()).
		Str("role", string(r)).
		Dur("expires_in", cfg.JWTExpiry).
		Msg("Token issued")
	fmt.Println(token)
}
