package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"ledger/internal/auth"
	"ledger/internal/config"
	"ledger/internal/db"
	"ledger/internal/logging"
	"ledger/internal/store"
	"ledger/internal/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type clientCreator interface {
	Create(ctx context.Context, id, name, secretHash string) error
}

func main() {
	name := flag.String("name", "", "unique name of the API client to register")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, secret, err := register(ctx, store.NewClientStore(database), *name)
	if err != nil {
		logger.Fatal("failed to register client", zap.String("name", *name), zap.Error(err))
	}
	logger.Info("registered api client", zap.String("client_id", id), zap.String("name", *name))
	fmt.Printf("clientId: %s\nclientSecret: %s\n", id, secret)
	fmt.Println("store the secret now; only its hash is kept")
}

// register creates a client with a fresh random secret and returns the plaintext once.
func register(ctx context.Context, clients clientCreator, name string) (string, string, error) {
	if err := validator.ValidateClientName(name); err != nil {
		return "", "", err
	}
	secret, err := auth.GenerateSecret()
	if err != nil {
		return "", "", err
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		return "", "", err
	}
	id := uuid.NewString()
	if err := clients.Create(ctx, id, name, hash); err != nil {
		if db.IsUniqueViolation(err, "api_clients_name_key") {
			return "", "", fmt.Errorf("client %q already exists", name)
		}
		return "", "", fmt.Errorf("insert client: %w", err)
	}
	return id, secret, nil
}
