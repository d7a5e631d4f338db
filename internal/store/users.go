package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/models"
)

func CreateUser(ctx context.Context, q database.Querier, email, name, role string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (id, email, name, role, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		RETURNING id, email, name, role, created_at, updated_at, version`

	err := q.QueryRowContext(ctx, query, uuid.New(), email, name, role).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q database.Querier, id uuid.UUID) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, name, role, created_at, updated_at, version
		FROM users
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
