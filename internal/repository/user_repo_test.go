package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/require"

	"campus-gateway/internal/model"
)

func newMockRepo(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewUserRepository(mock), mock
}

func TestUserRepository_FindByEmail(t *testing.T) {
	t.Run("scans the matching row", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		lastLogin := created.Add(time.Hour)
		rows := pgxmock.NewRows(userColumns).AddRow(
			"user-1", "ada@example.com", "$2a$hash", "Ada", "Lovelace",
			"FORMATEUR", true, &lastLogin, created, created,
		)
		mock.ExpectQuery(`SELECT id, email, .* FROM users WHERE lower\(email\) = \$1`).
			WithArgs("ada@example.com").
			WillReturnRows(rows)

		user, err := repo.FindByEmail(context.Background(), "  Ada@Example.com ")
		require.NoError(t, err)
		require.Equal(t, "user-1", user.ID)
		require.Equal(t, model.RoleFormateur, user.Role)
		require.True(t, user.IsActive)
		require.NotNil(t, user.LastLogin)
		require.True(t, lastLogin.Equal(*user.LastLogin))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps no rows to ErrUserNotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT .* FROM users`).
			WithArgs("ghost@example.com").
			WillReturnRows(pgxmock.NewRows(userColumns))

		_, err := repo.FindByEmail(context.Background(), "ghost@example.com")
		require.ErrorIs(t, err, model.ErrUserNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Create(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	user := model.User{
		ID:           "user-2",
		Email:        "Grace@Example.com",
		PasswordHash: "$2a$hash",
		FirstName:    "Grace",
		LastName:     "Hopper",
		Role:         model.RoleApprenant,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	t.Run("inserts a normalized record", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs("user-2", "grace@example.com", "$2a$hash", "Grace", "Hopper", "APPRENANT", true, now, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(context.Background(), user))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violations to ErrUserAlreadyExists", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(context.Background(), user)
		require.ErrorIs(t, err, model.ErrUserAlreadyExists)
	})
}

func TestUserRepository_UpdateLastLogin(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	t.Run("touches last_login and updated_at", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET last_login = \$1, updated_at = \$2 WHERE id = \$3`).
			WithArgs(at, at, "user-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateLastLogin(context.Background(), "user-1", at))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports missing users", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`UPDATE users`).
			WithArgs(at, at, "ghost").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		require.ErrorIs(t, repo.UpdateLastLogin(context.Background(), "ghost", at), model.ErrUserNotFound)
	})
}

func TestMemoryUserRepository(t *testing.T) {
	t.Parallel()

	repo := NewMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, model.User{ID: "u1", Email: "Ada@Example.com", IsActive: true}))
	require.ErrorIs(t, repo.Create(ctx, model.User{ID: "u2", Email: "ada@example.com"}), model.ErrUserAlreadyExists)

	found, err := repo.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", found.ID)

	at := time.Now().UTC()
	require.NoError(t, repo.UpdateLastLogin(ctx, "u1", at))
	found, err = repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, at, *found.LastLogin)

	require.NoError(t, repo.SetActive("u1", false))
	found, _ = repo.FindByEmail(ctx, "ada@example.com")
	require.False(t, found.IsActive)

	require.ErrorIs(t, repo.UpdateLastLogin(ctx, "missing", at), model.ErrUserNotFound)
	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}
