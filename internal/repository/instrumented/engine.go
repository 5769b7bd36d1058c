// Package instrumented decorates a repository.Engine with latency metrics.
package instrumented

import (
	"context"
	"time"

	"github.com/and161185/playlister/internal/metrics"
	"github.com/and161185/playlister/internal/model"
	"github.com/and161185/playlister/internal/repository"
)

// Engine forwards every call to the wrapped engine and records its duration.
type Engine struct {
	next repository.Engine
	m    *metrics.Metrics
}

var _ repository.Engine = (*Engine)(nil)

// Wrap returns next instrumented with m.
func Wrap(next repository.Engine, m *metrics.Metrics) *Engine {
	return &Engine{next: next, m: m}
}

func (e *Engine) observe(op string, start time.Time, err error) {
	e.m.StorageDuration.
		WithLabelValues(e.next.Name(), op, metrics.Outcome(err)).
		Observe(time.Since(start).Seconds())
}

func (e *Engine) Name() string { return e.next.Name() }

func (e *Engine) Connect(ctx context.Context) (err error) {
	defer func(start time.Time) { e.observe("connect", start, err) }(time.Now())
	return e.next.Connect(ctx)
}

func (e *Engine) Disconnect(ctx context.Context) (err error) {
	defer func(start time.Time) { e.observe("disconnect", start, err) }(time.Now())
	return e.next.Disconnect(ctx)
}

func (e *Engine) CreateUser(ctx context.Context, in model.NewUser) (u *model.User, err error) {
	defer func(start time.Time) { e.observe("create_user", start, err) }(time.Now())
	return e.next.CreateUser(ctx, in)
}

func (e *Engine) FindUserByID(ctx context.Context, id string) (u *model.User, err error) {
	defer func(start time.Time) { e.observe("find_user_by_id", start, err) }(time.Now())
	return e.next.FindUserByID(ctx, id)
}

func (e *Engine) FindUserByEmail(ctx context.Context, email string) (u *model.User, err error) {
	defer func(start time.Time) { e.observe("find_user_by_email", start, err) }(time.Now())
	return e.next.FindUserByEmail(ctx, email)
}

func (e *Engine) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (u *model.User, err error) {
	defer func(start time.Time) { e.observe("update_user", start, err) }(time.Now())
	return e.next.UpdateUser(ctx, id, upd)
}

func (e *Engine) DeleteUser(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { e.observe("delete_user", start, err) }(time.Now())
	return e.next.DeleteUser(ctx, id)
}

func (e *Engine) AddPlaylistToUser(ctx context.Context, userID, playlistID string) (u *model.User, err error) {
	defer func(start time.Time) { e.observe("add_playlist_to_user", start, err) }(time.Now())
	return e.next.AddPlaylistToUser(ctx, userID, playlistID)
}

func (e *Engine) DeleteAllUsers(ctx context.Context) (err error) {
	defer func(start time.Time) { e.observe("delete_all_users", start, err) }(time.Now())
	return e.next.DeleteAllUsers(ctx)
}

func (e *Engine) CreatePlaylist(ctx context.Context, in model.NewPlaylist) (p *model.Playlist, err error) {
	defer func(start time.Time) { e.observe("create_playlist", start, err) }(time.Now())
	return e.next.CreatePlaylist(ctx, in)
}

func (e *Engine) FindPlaylistByID(ctx context.Context, id string) (p *model.Playlist, err error) {
	defer func(start time.Time) { e.observe("find_playlist_by_id", start, err) }(time.Now())
	return e.next.FindPlaylistByID(ctx, id)
}

func (e *Engine) FindPlaylistsByOwnerEmail(ctx context.Context, email string) (ps []model.Playlist, err error) {
	defer func(start time.Time) { e.observe("find_playlists_by_owner", start, err) }(time.Now())
	return e.next.FindPlaylistsByOwnerEmail(ctx, email)
}

func (e *Engine) GetAllPlaylists(ctx context.Context) (ps []model.Playlist, err error) {
	defer func(start time.Time) { e.observe("get_all_playlists", start, err) }(time.Now())
	return e.next.GetAllPlaylists(ctx)
}

func (e *Engine) UpdatePlaylist(ctx context.Context, id string, upd model.PlaylistUpdate) (p *model.Playlist, err error) {
	defer func(start time.Time) { e.observe("update_playlist", start, err) }(time.Now())
	return e.next.UpdatePlaylist(ctx, id, upd)
}

func (e *Engine) DeletePlaylist(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { e.observe("delete_playlist", start, err) }(time.Now())
	return e.next.DeletePlaylist(ctx, id)
}

func (e *Engine) DeleteAllPlaylists(ctx context.Context) (err error) {
	defer func(start time.Time) { e.observe("delete_all_playlists", start, err) }(time.Now())
	return e.next.DeleteAllPlaylists(ctx)
}
