// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/playlister/internal/model"
)

// UserRepository provides CRUD access for users.
type UserRepository interface {
	// CreateUser inserts a new user; ErrAlreadyExists if the email is taken.
	CreateUser(ctx context.Context, u model.NewUser) (*model.User, error)
	// FindUserByID loads a user by ID.
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	// FindUserByEmail loads a user by email.
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateUser merges the present fields of upd into the user.
	UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	// DeleteUser removes a user. Deleting a missing user is not an error.
	DeleteUser(ctx context.Context, id string) error
	// AddPlaylistToUser appends a playlist reference to the user.
	AddPlaylistToUser(ctx context.Context, userID, playlistID string) (*model.User, error)
	// DeleteAllUsers removes every user (administrative reset).
	DeleteAllUsers(ctx context.Context) error
}
