package repository

import (
	"context"

	"github.com/and161185/playlister/internal/model"
)

// PlaylistRepository provides CRUD access for playlists.
type PlaylistRepository interface {
	// CreatePlaylist inserts a new playlist.
	CreatePlaylist(ctx context.Context, p model.NewPlaylist) (*model.Playlist, error)
	// FindPlaylistByID loads a playlist by ID.
	FindPlaylistByID(ctx context.Context, id string) (*model.Playlist, error)
	// FindPlaylistsByOwnerEmail returns the playlists owned by email, possibly none.
	FindPlaylistsByOwnerEmail(ctx context.Context, email string) ([]model.Playlist, error)
	// GetAllPlaylists returns every playlist.
	GetAllPlaylists(ctx context.Context) ([]model.Playlist, error)
	// UpdatePlaylist replaces only the fields present in upd.
	UpdatePlaylist(ctx context.Context, id string, upd model.PlaylistUpdate) (*model.Playlist, error)
	// DeletePlaylist removes a playlist. Deleting a missing playlist is not an error.
	DeletePlaylist(ctx context.Context, id string) error
	// DeleteAllPlaylists removes every playlist (administrative reset).
	DeleteAllPlaylists(ctx context.Context) error
}
