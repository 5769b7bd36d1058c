package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/model"
)

// userCols selects a user with its playlist references in insertion order.
// Queries alias users as u.
const userCols = `u.id::text, u.first_name, u.last_name, u.email, u.password_digest,
ARRAY(SELECT up.playlist_id::text FROM user_playlists up WHERE up.user_id = u.id ORDER BY up.id),
u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordDigest,
		&u.PlaylistRefs, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if u.PlaylistRefs == nil {
		u.PlaylistRefs = []string{}
	}
	return &u, nil
}

// CreateUser inserts a new user row.
func (e *Engine) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO users (id, first_name, last_name, email, password_digest)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`
	u := &model.User{
		ID:             id.String(),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		PasswordDigest: in.PasswordDigest,
		PlaylistRefs:   []string{},
	}
	err = pool.QueryRow(ctx, q, id, in.FirstName, in.LastName, in.Email, in.PasswordDigest).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errs.ErrAlreadyExists
		}
		return nil, fmt.Errorf("postgres: create user: %w", err)
	}
	return u, nil
}

// FindUserByID selects a user by ID.
func (e *Engine) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + userCols + ` FROM users u WHERE u.id = $1`
	u, err := scanUser(pool.QueryRow(ctx, q, uid))
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("postgres: find user: %w", err)
	}
	return u, err
}

// FindUserByEmail selects a user by email.
func (e *Engine) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + userCols + ` FROM users u WHERE u.email = $1`
	u, err := scanUser(pool.QueryRow(ctx, q, email))
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("postgres: find user by email: %w", err)
	}
	return u, err
}

// UpdateUser merges the present fields in a single statement.
func (e *Engine) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	if upd.Empty() {
		return e.FindUserByID(ctx, id)
	}
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	const q = `
UPDATE users u SET
  first_name = COALESCE($2, u.first_name),
  last_name = COALESCE($3, u.last_name),
  password_digest = COALESCE($4, u.password_digest),
  updated_at = now()
WHERE u.id = $1
RETURNING ` + userCols
	u, err := scanUser(pool.QueryRow(ctx, q, uid,
		nullable(upd.FirstName), nullable(upd.LastName), nullable(upd.PasswordDigest)))
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("postgres: update user: %w", err)
	}
	return u, err
}

// DeleteUser removes the user row; its playlist references cascade.
func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	pool, err := e.pool()
	if err != nil {
		return err
	}
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, uid); err != nil {
		return fmt.Errorf("postgres: delete user: %w", err)
	}
	return nil
}

// AddPlaylistToUser appends a reference row and returns the updated user.
func (e *Engine) AddPlaylistToUser(ctx context.Context, userID, playlistID string) (u *model.User, err error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	uid, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	pid, err := parseID(playlistID)
	if err != nil {
		return nil, err
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("postgres: add playlist: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			u, err = nil, fmt.Errorf("postgres: add playlist: %w", cerr)
		}
	}()

	const ins = `INSERT INTO user_playlists (user_id, playlist_id) VALUES ($1, $2)`
	if _, err = tx.Exec(ctx, ins, uid, pid); err != nil {
		if isForeignKeyViolation(err) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: add playlist: %w", err)
	}
	const sel = `SELECT ` + userCols + ` FROM users u WHERE u.id = $1`
	if u, err = scanUser(tx.QueryRow(ctx, sel, uid)); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("postgres: add playlist: %w", err)
	}
	return u, nil
}

// DeleteAllUsers removes every user and every playlist reference.
func (e *Engine) DeleteAllUsers(ctx context.Context) error {
	pool, err := e.pool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("postgres: delete all users: %w", err)
	}
	return nil
}
