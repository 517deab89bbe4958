package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"campus-gateway/internal/model"
)

const uniqueViolation = "23505"

var userColumns = []string{
	"id", "email", "password_hash", "first_name", "last_name",
	"role", "is_active", "last_login", "created_at", "updated_at",
}

// pgExecutor is satisfied by *pgxpool.Pool and by pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	query, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Expr("lower(email) = ?", normalizeEmail(email))).
		ToSql()
	if err != nil {
		return model.User{}, fmt.Errorf("build find user query: %w", err)
	}

	var (
		u         model.User
		role      string
		lastLogin *time.Time
	)
	err = r.exec.QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
			&role, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}

	u.Role = model.Role(role)
	u.LastLogin = lastLogin
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	query, args, err := r.builder.
		Insert("users").
		Columns("id", "email", "password_hash", "first_name", "last_name", "role", "is_active", "created_at", "updated_at").
		Values(u.ID, normalizeEmail(u.Email), u.PasswordHash, u.FirstName, u.LastName, string(u.Role), u.IsActive, u.CreatedAt, u.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create user query: %w", err)
	}

	if _, err := r.exec.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrUserAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	query, args, err := r.builder.
		Update("users").
		Set("last_login", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login query: %w", err)
	}

	tag, err := r.exec.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
