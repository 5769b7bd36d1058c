package repository

import "context"

// Engine is a storage backend for users and playlists.
//
// Connect must succeed before any other method is called; until then (and after
// Disconnect) data methods return errs.ErrNotInitialized. All methods are safe for
// concurrent use.
type Engine interface {
	UserRepository
	PlaylistRepository

	// Connect establishes the backend session. Failures wrap errs.ErrConnection.
	Connect(ctx context.Context) error
	// Disconnect releases backend resources. Safe to call more than once.
	Disconnect(ctx context.Context) error
	// Name identifies the backend in logs and metrics.
	Name() string
}
