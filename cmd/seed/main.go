package main

import (
	"context"
	"errors"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"adminpanel/internal/database"
	"adminpanel/internal/domain/user"
	"adminpanel/internal/logging"
)

type seedConfig struct {
	DatabaseURL   string `env:"DATABASE_URL" envDefault:"adminpanel.db"`
	AdminEmail    string `env:"SEED_ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword string `env:"SEED_ADMIN_PASSWORD" envDefault:"admin12345"`
	DemoUsers     bool   `env:"SEED_DEMO_USERS" envDefault:"true"`
}

func main() {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[seedConfig]()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New("dev")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	// Avatars are never seeded, so the media pipeline is not needed here.
	users := user.NewService(user.NewRepository(db), nil, logger)
	ctx := context.Background()

	inputs := []user.CreateInput{
		{Name: "Administrator", Email: cfg.AdminEmail, Password: cfg.AdminPassword, Role: user.RoleAdmin},
	}
	if cfg.DemoUsers {
		inputs = append(inputs,
			user.CreateInput{Name: "Demo Editor", Email: "editor@example.com", Password: "editor12345"},
			user.CreateInput{Name: "Demo Viewer", Email: "viewer@example.com", Password: "viewer12345", Status: user.StatusDisable},
		)
	}

	for _, in := range inputs {
		u, err := users.Create(ctx, in)
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			logger.Info("user exists, skipping", zap.String("email", in.Email))
		case err != nil:
			logger.Fatal("create user failed", zap.String("email", in.Email), zap.Error(err))
		default:
			logger.Info("user created", zap.Int64("id", u.ID), zap.String("email", u.Email), zap.String("role", string(u.Role)))
		}
	}
}
