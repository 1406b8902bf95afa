// Package repository is the Postgres implementation of store.Store.
package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"trackit/internal/store"
)

//go:embed schema.sql
var schema string

// Store bundles the per-entity repositories over one pool.
type Store struct {
	*UserRepository
	*ProjectRepository
	*TaskRepository

	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

func NewStore(db *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{
		UserRepository:    NewUserRepository(db, logger),
		ProjectRepository: NewProjectRepository(db, logger),
		TaskRepository:    NewTaskRepository(db, logger),
		db:                db,
		logger:            logger,
	}
}

// EnsureSchema creates the tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.Info("Database schema ensured")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
