// Package memory implements repository.Engine on process memory.
// It is meant for local development and tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/model"
	"github.com/and161185/playlister/internal/repository"
)

var _ repository.Engine = (*Engine)(nil)

// Engine keeps users and playlists in maps keyed by ULID.
type Engine struct {
	mu        sync.RWMutex
	connected bool

	users     map[string]*model.User
	byEmail   map[string]string // email -> user id
	playlists map[string]*model.Playlist

	now func() time.Time
}

// New constructs a disconnected in-memory engine.
func New() *Engine {
	return &Engine{now: func() time.Time { return time.Now().UTC() }}
}

// Name implements repository.Engine.
func (e *Engine) Name() string { return "memory" }

// Connect resets the engine to an empty, usable state.
func (e *Engine) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.connected {
		return nil
	}
	e.users = make(map[string]*model.User)
	e.byEmail = make(map[string]string)
	e.playlists = make(map[string]*model.Playlist)
	e.connected = true
	return nil
}

// Disconnect drops all data.
func (e *Engine) Disconnect(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = false
	e.users, e.byEmail, e.playlists = nil, nil, nil
	return nil
}

func parseID(id string) error {
	if _, err := ulid.ParseStrict(id); err != nil {
		return errs.ErrInvalidID
	}
	return nil
}

// --- users ---

// CreateUser implements repository.UserRepository.
func (e *Engine) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return nil, errs.ErrNotInitialized
	}
	if _, taken := e.byEmail[in.Email]; taken {
		return nil, errs.ErrAlreadyExists
	}
	now := e.now()
	u := &model.User{
		ID:             ulid.Make().String(),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		PasswordDigest: in.PasswordDigest,
		PlaylistRefs:   []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	e.users[u.ID] = u
	e.byEmail[u.Email] = u.ID
	return copyUser(u), nil
}

// FindUserByID implements repository.UserRepository.
func (e *Engine) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.connected {
		return nil, errs.ErrNotInitialized
	}
	if err := parseID(id); err != nil {
		return nil, err
	}
	u, ok := e.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copyUser(u), nil
}

// FindUserByEmail implements repository.UserRepository.
func (e *Engine) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.connected {
		return nil, errs.ErrNotInitialized
	}
	id, ok := e.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copyUser(e.users[id]), nil
}

// UpdateUser implements repository.UserRepository.
func (e *Engine) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return nil, errs.ErrNotInitialized
	}
	if err := parseID(id); err != nil {
		return nil, err
	}
	u, ok := e.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if upd.Empty() {
		return copyUser(u), nil
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.PasswordDigest != nil {
		u.PasswordDigest = *upd.PasswordDigest
	}
	u.UpdatedAt = e.now()
	return copyUser(u), nil
}

// DeleteUser implements repository.UserRepository.
func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return errs.ErrNotInitialized
	}
	if err := parseID(id); err != nil {
		return err
	}
	if u, ok := e.users[id]; ok {
		delete(e.byEmail, u.Email)
		delete(e.users, id)
	}
	return nil
}

// AddPlaylistToUser implements repository.UserRepository.
func (e *Engine) AddPlaylistToUser(ctx context.Context, userID, playlistID string) (*model.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return nil, errs.ErrNotInitialized
	}
	if err := parseID(userID); err != nil {
		return nil, err
	}
	if err := parseID(playlistID); err != nil {
		return nil, err
	}
	u, ok := e.users[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	u.PlaylistRefs = append(u.PlaylistRefs, playlistID)
	u.UpdatedAt = e.now()
	return copyUser(u), nil
}

// DeleteAllUsers implements repository.UserRepository.
func (e *Engine) DeleteAllUsers(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return errs.ErrNotInitialized
	}
	e.users = make(map[string]*model.User)
	e.byEmail = make(map[string]string)
	return nil
}

// --- playlists ---

// CreatePlaylist implements repository.PlaylistRepository.
func (e *Engine) CreatePlaylist(ctx context.Context, in model.NewPlaylist) (*model.Playlist, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return nil, errs.ErrNotInitialized
	}
	now := e.now()
	p := &model.Playlist{
		ID:         ulid.Make().String(),
		Name:       in.Name,
		OwnerEmail: in.OwnerEmail,
		Songs:      append([]model.Song{}, in.Songs...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	e.playlists[p.ID] = p
	return copyPlaylist(p), nil
}

// FindPlaylistByID implements repository.PlaylistRepository.
func (e *Engine) FindPlaylistByID(ctx context.Context, id string) (*model.Playlist, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.connected {
		return nil, errs.ErrNotInitialized
	}
	if err := parseID(id); err != nil {
		return nil, err
	}
	p, ok := e.playlists[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copyPlaylist(p), nil
}

// FindPlaylistsByOwnerEmail implements repository.PlaylistRepository.
func (e *Engine) FindPlaylistsByOwnerEmail(ctx context.Context, email string) ([]model.Playlist, error) {
	return e.list(func(p *model.Playlist) bool { return p.OwnerEmail == email })
}

// GetAllPlaylists implements repository.PlaylistRepository.
func (e *Engine) GetAllPlaylists(ctx context.Context) ([]model.Playlist, error) {
	return e.list(func(*model.Playlist) bool { return true })
}

func (e *Engine) list(keep func(*model.Playlist) bool) ([]model.Playlist, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.connected {
		return nil, errs.ErrNotInitialized
	}
	out := make([]model.Playlist, 0, len(e.playlists))
	for _, p := range e.playlists {
		if keep(p) {
			out = append(out, *copyPlaylist(p))
		}
	}
	// ULIDs sort in creation order.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdatePlaylist implements repository.PlaylistRepository.
func (e *Engine) UpdatePlaylist(ctx context.Context, id string, upd model.PlaylistUpdate) (*model.Playlist, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return nil, errs.ErrNotInitialized
	}
	if err := parseID(id); err != nil {
		return nil, err
	}
	p, ok := e.playlists[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if upd.Empty() {
		return copyPlaylist(p), nil
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Songs != nil {
		p.Songs = append([]model.Song{}, (*upd.Songs)...)
	}
	p.UpdatedAt = e.now()
	return copyPlaylist(p), nil
}

// DeletePlaylist implements repository.PlaylistRepository.
func (e *Engine) DeletePlaylist(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return errs.ErrNotInitialized
	}
	if err := parseID(id); err != nil {
		return err
	}
	delete(e.playlists, id)
	return nil
}

// DeleteAllPlaylists implements repository.PlaylistRepository.
func (e *Engine) DeleteAllPlaylists(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return errs.ErrNotInitialized
	}
	e.playlists = make(map[string]*model.Playlist)
	return nil
}

func copyUser(u *model.User) *model.User {
	c := *u
	c.PlaylistRefs = append([]string{}, u.PlaylistRefs...)
	return &c
}

func copyPlaylist(p *model.Playlist) *model.Playlist {
	c := *p
	c.Songs = append([]model.Song{}, p.Songs...)
	return &c
}
