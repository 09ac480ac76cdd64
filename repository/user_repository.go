package repository

import (
	"context"
	"database/sql"
	"errors"
	"task-manager-api/logger"
	"task-manager-api/model"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, full_name, avatar_url, avatar_local_path, password, is_email_verified,
	refresh_token, forgot_password_token, forgot_password_expiry, email_verification_token, email_verification_expiry,
	created_at, updated_at`

// UserRepository implements IUserRepository on PostgreSQL.
type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u                                       model.User
		fullName, refresh, forgotTok, verifyTok sql.NullString
		forgotExpiry, verifyExpiry              sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &fullName, &u.Avatar.URL, &u.Avatar.LocalPath, &u.PasswordHash,
		&u.IsEmailVerified, &refresh, &forgotTok, &forgotExpiry, &verifyTok, &verifyExpiry, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.FullName = fullName.String
	u.RefreshToken = refresh.String
	if forgotTok.Valid && forgotExpiry.Valid {
		u.SetForgotPasswordToken(forgotTok.String, forgotExpiry.Time)
	}
	if verifyTok.Valid && verifyExpiry.Valid {
		u.SetEmailVerificationToken(verifyTok.String, verifyExpiry.Time)
	}
	return &u, nil
}

func (r *UserRepository) queryOne(ctx context.Context, log *logrus.Entry, query string, args ...any) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.WithError(err).Error("Failed to execute user lookup query")
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	username = model.NormalizeUsername(username)
	email = model.NormalizeEmail(email)
	if username == "" && email == "" {
		return nil, ErrNotFound
	}

	log := logger.Log.WithFields(logrus.Fields{"username": username, "email": email})
	log.Debug("Executing query to find user by username or email")

	query := `SELECT ` + userColumns + ` FROM users WHERE (username = $1 AND $1 <> '') OR (email = $2 AND $2 <> '') LIMIT 1`
	return r.queryOne(ctx, log, query, username, email)
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.Normalize()
	log := logger.Log.WithFields(logrus.Fields{
		"username": user.Username,
		"email":    user.Email,
	})
	log.Info("Executing query to create a new user")

	id := uuid.NewString()
	query := `INSERT INTO users (id, username, email, full_name, avatar_url, avatar_local_path, password, is_email_verified,
		refresh_token, forgot_password_token, forgot_password_expiry, email_verification_token, email_verification_expiry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err := r.DB.QueryRowContext(ctx, query,
		id, user.Username, user.Email, nullString(user.FullName), user.Avatar.URL, user.Avatar.LocalPath, user.PasswordHash,
		user.IsEmailVerified, nullString(user.RefreshToken), nullString(user.ForgotPasswordToken), nullTime(user.ForgotPasswordExpiry),
		nullString(user.EmailVerificationToken), nullTime(user.EmailVerificationExpiry),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			log.Info("User insert rejected by unique constraint")
			return ErrDuplicate
		}
		log.WithError(err).Error("Failed to execute create user query")
		return err
	}

	user.ID = id
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	log := logger.Log.WithField("user_id", id)
	return r.queryOne(ctx, log, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmailVerificationToken(ctx context.Context, tokenHash string) (*model.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	return r.queryOne(ctx, logger.Log.WithField("lookup", "email_verification_token"),
		`SELECT `+userColumns+` FROM users WHERE email_verification_token = $1`, tokenHash)
}

func (r *UserRepository) FindByForgotPasswordToken(ctx context.Context, tokenHash string) (*model.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	return r.queryOne(ctx, logger.Log.WithField("lookup", "forgot_password_token"),
		`SELECT `+userColumns+` FROM users WHERE forgot_password_token = $1`, tokenHash)
}

// execUpdate runs a single-row UPDATE and maps zero affected rows to
// ErrNotFound.
func (r *UserRepository) execUpdate(ctx context.Context, log *logrus.Entry, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("Failed to execute update user query")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		log.WithError(err).Error("Failed to read affected rows")
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiry time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return r.execUpdate(ctx, logger.Log.WithField("user_id", id),
		`UPDATE users SET email_verification_token = $2, email_verification_expiry = $3, updated_at = NOW() WHERE id = $1`,
		id, tokenHash, expiry)
}

func (r *UserRepository) SetForgotPasswordToken(ctx context.Context, id, tokenHash string, expiry time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return r.execUpdate(ctx, logger.Log.WithField("user_id", id),
		`UPDATE users SET forgot_password_token = $2, forgot_password_expiry = $3, updated_at = NOW() WHERE id = $1`,
		id, tokenHash, expiry)
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return r.execUpdate(ctx, logger.Log.WithField("user_id", id),
		`UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1`,
		id, nullString(token))
}

func (r *UserRepository) ReplaceRefreshToken(ctx context.Context, id, current, next string) error {
	if _, err := uuid.Parse(id); err != nil || current == "" {
		return ErrNotFound
	}
	return r.execUpdate(ctx, logger.Log.WithField("user_id", id),
		`UPDATE users SET refresh_token = $3, updated_at = NOW() WHERE id = $1 AND refresh_token = $2`,
		id, current, nullString(next))
}

func (r *UserRepository) ReplacePasswordHash(ctx context.Context, id, current, next string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return r.execUpdate(ctx, logger.Log.WithField("user_id", id),
		`UPDATE users SET password = $3, updated_at = NOW() WHERE id = $1 AND password = $2`,
		id, current, next)
}

func (r *UserRepository) ConsumeEmailVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	query := `UPDATE users SET is_email_verified = TRUE, email_verification_token = NULL, email_verification_expiry = NULL,
		updated_at = NOW()
		WHERE email_verification_token = $1 AND email_verification_expiry > $2
		RETURNING ` + userColumns
	return r.queryOne(ctx, logger.Log.WithField("consume", "email_verification_token"), query, tokenHash, now)
}

func (r *UserRepository) ConsumeForgotPasswordToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*model.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	query := `UPDATE users SET password = $3, refresh_token = NULL, forgot_password_token = NULL, forgot_password_expiry = NULL,
		updated_at = NOW()
		WHERE forgot_password_token = $1 AND forgot_password_expiry > $2
		RETURNING ` + userColumns
	return r.queryOne(ctx, logger.Log.WithField("consume", "forgot_password_token"), query, tokenHash, now, passwordHash)
}
