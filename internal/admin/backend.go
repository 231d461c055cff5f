// Package admin implements recipekeeper-admin, the command used to migrate
// the database schema and manage accounts from a shell.
package admin

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/recipekeeper/internal/cryptox"
	"github.com/dmitrijs2005/recipekeeper/internal/server/config"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/dmitrijs2005/recipekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/recipekeeper/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Backend is what the commands need from the database.
type Backend interface {
	Migrate(ctx context.Context) error
	CreateUser(ctx context.Context, email, password string, fields *services.UserFields) (*models.User, error)
	CreateSuperuser(ctx context.Context, email, password string) (*models.User, error)
	SetPassword(ctx context.Context, email, password string) error
	Close() error
}

// openBackend is a seam for tests.
var openBackend = openPostgres

type postgresBackend struct {
	*services.UserService
	db          *sqlx.DB
	repomanager repomanager.RepositoryManager
}

func openPostgres(ctx context.Context, cfg *config.Config) (Backend, error) {
	hasher, err := cryptox.NewPasswordHasher(cfg.PasswordHasher)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	return &postgresBackend{
		UserService: services.NewUserService(db, rm, hasher, cfg),
		db:          db,
		repomanager: rm,
	}, nil
}

func (b *postgresBackend) Migrate(ctx context.Context) error {
	return b.repomanager.RunMigrations(ctx, b.db.DB)
}

func (b *postgresBackend) Close() error {
	return b.db.Close()
}
