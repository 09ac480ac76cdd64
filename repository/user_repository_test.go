package repository

import (
	"context"
	"errors"
	"regexp"
	"task-manager-api/model"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{
	"id", "username", "email", "full_name", "avatar_url", "avatar_local_path", "password", "is_email_verified",
	"refresh_token", "forgot_password_token", "forgot_password_expiry", "email_verification_token",
	"email_verification_expiry", "created_at", "updated_at",
}

const testUserID = "8f14e45f-ceea-467f-a0e6-1b2c3d4e5f60"

func TestUserRepository_Create(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("success", func(t *testing.T) {
		dbMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(sqlmock.AnyArg(), "abc", "a@x.com", nil, model.DefaultAvatarURL, "", "$2a$10$hash", false,
				nil, nil, nil, nil, nil).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		user := newTestUser(" ABC ", "A@x.com")
		err := repo.Create(ctx, user)

		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "abc", user.Username)
		assert.Equal(t, now, user.CreatedAt)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unique violation", func(t *testing.T) {
		dbMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

		err := repo.Create(ctx, newTestUser("abc", "a@x.com"))

		assert.ErrorIs(t, err, ErrDuplicate)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("other error", func(t *testing.T) {
		dbMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(errors.New("connection reset"))

		err := repo.Create(ctx, newTestUser("abc", "a@x.com"))

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicate)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestUserRepository_FindByUsernameOrEmail(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	expiry := now.Add(20 * time.Minute)

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(userRowColumns).AddRow(
			testUserID, "abc", "a@x.com", nil, model.DefaultAvatarURL, "", "$2a$10$hash", false,
			"refresh", nil, nil, "verify-hash", expiry, now, now,
		)
		dbMock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE (username = $1")).
			WithArgs("abc", "a@x.com").
			WillReturnRows(rows)

		user, err := repo.FindByUsernameOrEmail(ctx, "ABC", " a@x.com")

		require.NoError(t, err)
		assert.Equal(t, testUserID, user.ID)
		assert.Equal(t, "refresh", user.RefreshToken)
		assert.Equal(t, "verify-hash", user.EmailVerificationToken)
		require.NotNil(t, user.EmailVerificationExpiry)
		assert.True(t, expiry.Equal(*user.EmailVerificationExpiry))
		assert.Empty(t, user.ForgotPasswordToken)
		assert.Nil(t, user.ForgotPasswordExpiry)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		dbMock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE (username = $1")).
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := repo.FindByUsernameOrEmail(ctx, "nobody", "")

		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("empty arguments skip the query", func(t *testing.T) {
		_, err := repo.FindByUsernameOrEmail(ctx, " ", "")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestUserRepository_FindByID_InvalidID(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewUserRepository(db).FindByID(context.Background(), "not-a-uuid")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestUserRepository_Updates(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	ctx := context.Background()
	expiry := time.Now().Add(20 * time.Minute)

	t.Run("set verification token", func(t *testing.T) {
		dbMock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email_verification_token = $2, email_verification_expiry = $3")).
			WithArgs(testUserID, "verify-hash", expiry).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SetEmailVerificationToken(ctx, testUserID, "verify-hash", expiry))
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("set forgot token", func(t *testing.T) {
		dbMock.ExpectExec(regexp.QuoteMeta("UPDATE users SET forgot_password_token = $2, forgot_password_expiry = $3")).
			WithArgs(testUserID, "forgot-hash", expiry).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SetForgotPasswordToken(ctx, testUserID, "forgot-hash", expiry))
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("clear refresh token writes NULL", func(t *testing.T) {
		dbMock.ExpectExec(regexp.QuoteMeta("UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1")).
			WithArgs(testUserID, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SetRefreshToken(ctx, testUserID, ""))
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		dbMock.ExpectExec(regexp.QuoteMeta("UPDATE users SET refresh_token")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.SetRefreshToken(ctx, testUserID, "refresh"), ErrNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("invalid id skips the query", func(t *testing.T) {
		assert.ErrorIs(t, repo.SetRefreshToken(ctx, "not-a-uuid", "refresh"), ErrNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestUserRepository_ConditionalReplace(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("refresh token rotated", func(t *testing.T) {
		dbMock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND refresh_token = $2")).
			WithArgs(testUserID, "current", "next").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.ReplaceRefreshToken(ctx, testUserID, "current", "next"))
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("stale refresh token", func(t *testing.T) {
		dbMock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND refresh_token = $2")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.ReplaceRefreshToken(ctx, testUserID, "stale", "next"), ErrNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("stale password hash", func(t *testing.T) {
		dbMock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND password = $2")).
			WithArgs(testUserID, "$2a$10$old", "$2a$10$new").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.ReplacePasswordHash(ctx, testUserID, "$2a$10$old", "$2a$10$new"), ErrNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestUserRepository_ConsumeTokens(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("verification consumed", func(t *testing.T) {
		rows := sqlmock.NewRows(userRowColumns).AddRow(
			testUserID, "abc", "a@x.com", nil, model.DefaultAvatarURL, "", "$2a$10$hash", true,
			nil, nil, nil, nil, nil, now, now,
		)
		dbMock.ExpectQuery(regexp.QuoteMeta("WHERE email_verification_token = $1 AND email_verification_expiry > $2")).
			WithArgs("verify-hash", now).
			WillReturnRows(rows)

		user, err := repo.ConsumeEmailVerificationToken(ctx, "verify-hash", now)

		require.NoError(t, err)
		assert.True(t, user.IsEmailVerified)
		assert.Empty(t, user.EmailVerificationToken)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("reset token consumed", func(t *testing.T) {
		rows := sqlmock.NewRows(userRowColumns).AddRow(
			testUserID, "abc", "a@x.com", nil, model.DefaultAvatarURL, "", "$2a$10$new", true,
			nil, nil, nil, nil, nil, now, now,
		)
		dbMock.ExpectQuery(regexp.QuoteMeta("WHERE forgot_password_token = $1 AND forgot_password_expiry > $2")).
			WithArgs("forgot-hash", now, "$2a$10$new").
			WillReturnRows(rows)

		user, err := repo.ConsumeForgotPasswordToken(ctx, "forgot-hash", now, "$2a$10$new")

		require.NoError(t, err)
		assert.Equal(t, "$2a$10$new", user.PasswordHash)
		assert.Empty(t, user.RefreshToken)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("already consumed", func(t *testing.T) {
		dbMock.ExpectQuery(regexp.QuoteMeta("WHERE forgot_password_token = $1")).
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := repo.ConsumeForgotPasswordToken(ctx, "forgot-hash", now, "$2a$10$new")

		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}
