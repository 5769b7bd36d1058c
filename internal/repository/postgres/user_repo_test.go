package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/model"
)

var userColumns = []string{"id", "first_name", "last_name", "email", "password_digest", "playlist_refs", "created_at", "updated_at"}

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func q(sql string) string { return regexp.QuoteMeta(sql) }

func TestEngine_NotInitialized(t *testing.T) {
	e := New("", nil)
	ctx := context.Background()

	_, err := e.FindUserByEmail(ctx, "a@b.com")
	require.ErrorIs(t, err, errs.ErrNotInitialized)
	require.ErrorIs(t, e.DeletePlaylist(ctx, uuid.Must(uuid.NewV4()).String()), errs.ErrNotInitialized)

	err = e.Connect(ctx)
	require.ErrorIs(t, err, errs.ErrConnection)
	require.NoError(t, e.Disconnect(ctx))
}

func TestEngine_DisconnectIsIdempotent(t *testing.T) {
	db, _ := newDB(t)
	e := NewWithDB(db)

	ctx := context.Background()
	require.NoError(t, e.Disconnect(ctx))
	require.NoError(t, e.Disconnect(ctx))
	_, err := e.GetAllPlaylists(ctx)
	require.ErrorIs(t, err, errs.ErrNotInitialized)
}

func TestUserRepo_CreateUser_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	e := NewWithDB(db)
	ctx := context.Background()
	in := model.NewUser{FirstName: "A", LastName: "B", Email: "a@b.com", PasswordDigest: "h"}
	now := time.Now()

	mock.ExpectQuery(q(`INSERT INTO users (id, first_name, last_name, email, password_digest) VALUES ($1, $2, $3, $4, $5)`)).
		WithArgs(pgxmock.AnyArg(), "A", "B", "a@b.com", "h").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	u, err := e.CreateUser(ctx, in)
	require.NoError(t, err)
	require.Equal(t, uuid.V4, uuid.FromStringOrNil(u.ID).Version())
	require.Equal(t, "a@b.com", u.Email)
	require.Equal(t, []string{}, u.PlaylistRefs)
	require.Equal(t, now, u.CreatedAt)

	mock.ExpectQuery(q(`INSERT INTO users`)).
		WithArgs(pgxmock.AnyArg(), "A", "B", "a@b.com", "h").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = e.CreateUser(ctx, in)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_FindUserByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	e := NewWithDB(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	ref := uuid.Must(uuid.NewV4()).String()
	now := time.Now()

	mock.ExpectQuery(q(`FROM users u WHERE u.id = $1`)).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(id.String(), "A", "B", "a@b.com", "h", []string{ref}, now, now))
	u, err := e.FindUserByID(ctx, id.String())
	require.NoError(t, err)
	require.Equal(t, id.String(), u.ID)
	require.Equal(t, []string{ref}, u.PlaylistRefs)

	mock.ExpectQuery(q(`FROM users u WHERE u.id = $1`)).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = e.FindUserByID(ctx, id.String())
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = e.FindUserByID(ctx, "42")
	require.ErrorIs(t, err, errs.ErrInvalidID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_FindUserByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	e := NewWithDB(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4()).String()
	now := time.Now()

	mock.ExpectQuery(q(`FROM users u WHERE u.email = $1`)).
		WithArgs("a@b.com").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(id, "A", "B", "a@b.com", "h", []string(nil), now, now))
	u, err := e.FindUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.NotNil(t, u.PlaylistRefs)

	mock.ExpectQuery(q(`FROM users u WHERE u.email = $1`)).
		WithArgs("nobody@b.com").
		WillReturnError(pgx.ErrNoRows)
	_, err = e.FindUserByEmail(ctx, "nobody@b.com")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdateUser_MergesPresentFields(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	e := NewWithDB(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now()
	digest := "new-digest"

	mock.ExpectQuery(q(`UPDATE users u SET first_name = COALESCE($2, u.first_name)`)).
		WithArgs(id, nil, nil, "new-digest").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(id.String(), "A", "B", "a@b.com", "new-digest", []string{}, now, now))
	u, err := e.UpdateUser(ctx, id.String(), model.UserUpdate{PasswordDigest: &digest})
	require.NoError(t, err)
	require.Equal(t, "new-digest", u.PasswordDigest)

	mock.ExpectQuery(q(`UPDATE users u SET`)).
		WithArgs(id, nil, nil, "new-digest").
		WillReturnError(pgx.ErrNoRows)
	_, err = e.UpdateUser(ctx, id.String(), model.UserUpdate{PasswordDigest: &digest})
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_DeleteUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	e := NewWithDB(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	// Zero rows affected is still success.
	mock.ExpectExec(q(`DELETE FROM users WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.NoError(t, e.DeleteUser(ctx, id.String()))

	require.ErrorIs(t, e.DeleteUser(ctx, "nope"), errs.ErrInvalidID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_AddPlaylistToUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	e := NewWithDB(db)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())
	pid := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(q(`INSERT INTO user_playlists (user_id, playlist_id) VALUES ($1, $2)`)).
		WithArgs(uid, pid).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(q(`FROM users u WHERE u.id = $1`)).
		WithArgs(uid).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(uid.String(), "A", "B", "a@b.com", "h", []string{pid.String()}, now, now))
	mock.ExpectCommit()

	u, err := e.AddPlaylistToUser(ctx, uid.String(), pid.String())
	require.NoError(t, err)
	require.Equal(t, []string{pid.String()}, u.PlaylistRefs)

	// Missing user surfaces as a foreign key violation.
	mock.ExpectBegin()
	mock.ExpectExec(q(`INSERT INTO user_playlists`)).
		WithArgs(uid, pid).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	_, err = e.AddPlaylistToUser(ctx, uid.String(), pid.String())
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = e.AddPlaylistToUser(ctx, uid.String(), "bad")
	require.ErrorIs(t, err, errs.ErrInvalidID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_DeleteAllUsers(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	e := NewWithDB(db)

	mock.ExpectExec(q(`DELETE FROM users`)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	require.NoError(t, e.DeleteAllUsers(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
