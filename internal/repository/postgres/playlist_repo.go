package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/model"
)

const playlistCols = `id::text, name, owner_email, songs, created_at, updated_at`

func scanPlaylist(row pgx.Row) (*model.Playlist, error) {
	var (
		p     model.Playlist
		songs []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.OwnerEmail, &songs, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if len(songs) > 0 {
		if err := json.Unmarshal(songs, &p.Songs); err != nil {
			return nil, fmt.Errorf("decode songs: %w", err)
		}
	}
	p.Songs = model.NonNilSongs(p.Songs)
	return &p, nil
}

func encodeSongs(s []model.Song) ([]byte, error) {
	return json.Marshal(model.NonNilSongs(s))
}

// CreatePlaylist inserts a new playlist row.
func (e *Engine) CreatePlaylist(ctx context.Context, in model.NewPlaylist) (*model.Playlist, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	songs, err := encodeSongs(in.Songs)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO playlists (id, name, owner_email, songs)
VALUES ($1, $2, $3, $4::jsonb)
RETURNING ` + playlistCols
	p, err := scanPlaylist(pool.QueryRow(ctx, q, id, in.Name, in.OwnerEmail, songs))
	if err != nil {
		return nil, fmt.Errorf("postgres: create playlist: %w", err)
	}
	return p, nil
}

// FindPlaylistByID selects a playlist by ID.
func (e *Engine) FindPlaylistByID(ctx context.Context, id string) (*model.Playlist, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	pid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + playlistCols + ` FROM playlists WHERE id = $1`
	p, err := scanPlaylist(pool.QueryRow(ctx, q, pid))
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("postgres: find playlist: %w", err)
	}
	return p, err
}

// FindPlaylistsByOwnerEmail lists playlists owned by email in creation order.
func (e *Engine) FindPlaylistsByOwnerEmail(ctx context.Context, email string) ([]model.Playlist, error) {
	const q = `SELECT ` + playlistCols + ` FROM playlists WHERE owner_email = $1 ORDER BY seq`
	return e.listPlaylists(ctx, q, email)
}

// GetAllPlaylists lists every playlist in creation order.
func (e *Engine) GetAllPlaylists(ctx context.Context) ([]model.Playlist, error) {
	const q = `SELECT ` + playlistCols + ` FROM playlists ORDER BY seq`
	return e.listPlaylists(ctx, q)
}

func (e *Engine) listPlaylists(ctx context.Context, q string, args ...any) ([]model.Playlist, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list playlists: %w", err)
	}
	defer rows.Close()

	out := make([]model.Playlist, 0)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: list playlists: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list playlists: %w", err)
	}
	return out, nil
}

// UpdatePlaylist merges name and/or songs in a single statement.
func (e *Engine) UpdatePlaylist(ctx context.Context, id string, upd model.PlaylistUpdate) (*model.Playlist, error) {
	if upd.Empty() {
		return e.FindPlaylistByID(ctx, id)
	}
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	pid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var songs any
	if upd.Songs != nil {
		b, err := encodeSongs(*upd.Songs)
		if err != nil {
			return nil, err
		}
		songs = b
	}
	const q = `
UPDATE playlists SET
  name = COALESCE($2, name),
  songs = COALESCE($3::jsonb, songs),
  updated_at = now()
WHERE id = $1
RETURNING ` + playlistCols
	p, err := scanPlaylist(pool.QueryRow(ctx, q, pid, nullable(upd.Name), songs))
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("postgres: update playlist: %w", err)
	}
	return p, err
}

// DeletePlaylist removes the playlist row if present.
func (e *Engine) DeletePlaylist(ctx context.Context, id string) error {
	pool, err := e.pool()
	if err != nil {
		return err
	}
	pid, err := parseID(id)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, pid); err != nil {
		return fmt.Errorf("postgres: delete playlist: %w", err)
	}
	return nil
}

// DeleteAllPlaylists removes every playlist.
func (e *Engine) DeleteAllPlaylists(ctx context.Context) error {
	pool, err := e.pool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `DELETE FROM playlists`); err != nil {
		return fmt.Errorf("postgres: delete all playlists: %w", err)
	}
	return nil
}
