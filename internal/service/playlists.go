package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/model"
	"github.com/and161185/playlister/internal/repository"
)

const msgPlaylistName = "Please enter a playlist name."

// PlaylistService exposes playlists to their owners.
// Ownership is decided by the playlist's owner email.
type PlaylistService struct {
	users     repository.UserRepository
	playlists repository.PlaylistRepository
	log       *zap.Logger
}

// NewPlaylistService constructs PlaylistService.
func NewPlaylistService(users repository.UserRepository, playlists repository.PlaylistRepository, log *zap.Logger) *PlaylistService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PlaylistService{users: users, playlists: playlists, log: log}
}

// Create stores a playlist owned by userID and links it to the user.
func (s *PlaylistService) Create(ctx context.Context, userID, name string, songs []model.Song) (*model.Playlist, error) {
	if name == "" {
		return nil, errs.Invalid(errs.RuleRequired, msgPlaylistName)
	}
	owner, err := s.owner(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.playlists.CreatePlaylist(ctx, model.NewPlaylist{Name: name, OwnerEmail: owner.Email, Songs: songs})
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	if _, err := s.users.AddPlaylistToUser(ctx, owner.ID, p.ID); err != nil {
		if derr := s.playlists.DeletePlaylist(ctx, p.ID); derr != nil {
			s.log.Error("orphaned playlist", zap.String("playlist_id", p.ID), zap.Error(derr))
		}
		return nil, fmt.Errorf("create playlist: link owner: %w", err)
	}
	return p, nil
}

// Get returns a playlist the caller owns.
func (s *PlaylistService) Get(ctx context.Context, userID, id string) (*model.Playlist, error) {
	_, p, err := s.owned(ctx, userID, id)
	return p, err
}

// ListOwned returns id/name pairs of the caller's playlists in creation order.
func (s *PlaylistService) ListOwned(ctx context.Context, userID string) ([]model.PlaylistPair, error) {
	owner, err := s.owner(ctx, userID)
	if err != nil {
		return nil, err
	}
	list, err := s.playlists.FindPlaylistsByOwnerEmail(ctx, owner.Email)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	pairs := make([]model.PlaylistPair, 0, len(list))
	for _, p := range list {
		pairs = append(pairs, model.PlaylistPair{ID: p.ID, Name: p.Name})
	}
	return pairs, nil
}

// Update merges upd into a playlist the caller owns.
func (s *PlaylistService) Update(ctx context.Context, userID, id string, upd model.PlaylistUpdate) (*model.Playlist, error) {
	if upd.Name != nil && *upd.Name == "" {
		return nil, errs.Invalid(errs.RuleRequired, msgPlaylistName)
	}
	if _, _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	p, err := s.playlists.UpdatePlaylist(ctx, id, upd)
	if err != nil {
		return nil, notFoundOr("update playlist", err)
	}
	return p, nil
}

// Delete removes a playlist the caller owns.
func (s *PlaylistService) Delete(ctx context.Context, userID, id string) error {
	if _, _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.playlists.DeletePlaylist(ctx, id); err != nil {
		return notFoundOr("delete playlist", err)
	}
	return nil
}

// owner loads the acting user. A vanished user is treated as unauthenticated.
func (s *PlaylistService) owner(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load owner: %w", err)
	}
	return u, nil
}

func (s *PlaylistService) owned(ctx context.Context, userID, id string) (*model.User, *model.Playlist, error) {
	owner, err := s.owner(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.playlists.FindPlaylistByID(ctx, id)
	if err != nil {
		return nil, nil, notFoundOr("find playlist", err)
	}
	if p.OwnerEmail != owner.Email {
		return nil, nil, errs.ErrForbidden
	}
	return owner, p, nil
}

// notFoundOr folds malformed ids into ErrNotFound and wraps anything else.
func notFoundOr(op string, err error) error {
	if errs.IsNotFound(err) {
		return errs.ErrNotFound
	}
	if errors.Is(err, errs.ErrValidation) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
