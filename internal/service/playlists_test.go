package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/model"
	"github.com/and161185/playlister/internal/repository/memory"
	"github.com/and161185/playlister/internal/repository/repotest"
)

type linkFailingUsers struct {
	*memory.Engine
}

func (linkFailingUsers) AddPlaylistToUser(context.Context, string, string) (*model.User, error) {
	return nil, errors.New("link failed")
}

func newPlaylistFixture(t *testing.T) (*memory.Engine, *PlaylistService, *model.User, *model.User) {
	t.Helper()
	ctx := context.Background()
	e := memory.New()
	require.NoError(t, e.Connect(ctx))
	alice, err := e.CreateUser(ctx, model.NewUser{FirstName: "A", LastName: "A", Email: "alice@x.io", PasswordDigest: "d"})
	require.NoError(t, err)
	bob, err := e.CreateUser(ctx, model.NewUser{FirstName: "B", LastName: "B", Email: "bob@x.io", PasswordDigest: "d"})
	require.NoError(t, err)
	return e, NewPlaylistService(e, e, nil), alice, bob
}

func TestPlaylists_CreateLinksOwner(t *testing.T) {
	e, svc, alice, _ := newPlaylistFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, alice.ID, "Road trip", []model.Song{{Title: "t", Artist: "a", Year: 1999, YouTubeID: "y"}})
	require.NoError(t, err)
	require.Equal(t, "alice@x.io", p.OwnerEmail)
	require.Len(t, p.Songs, 1)

	u, err := e.FindUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, []string{p.ID}, u.PlaylistRefs)

	_, err = svc.Create(ctx, alice.ID, "", nil)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.Create(ctx, repotest.MalformedID, "x", nil)
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
}

func TestPlaylists_CreateRollsBackOnLinkFailure(t *testing.T) {
	e, _, alice, _ := newPlaylistFixture(t)
	ctx := context.Background()
	svc := NewPlaylistService(linkFailingUsers{e}, e, nil)

	_, err := svc.Create(ctx, alice.ID, "x", nil)
	require.Error(t, err)

	all, err := e.GetAllPlaylists(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestPlaylists_OwnershipEnforced(t *testing.T) {
	_, svc, alice, bob := newPlaylistFixture(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, alice.ID, "mine", nil)
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob.ID, p.ID)
	require.ErrorIs(t, err, errs.ErrForbidden)
	name := "stolen"
	_, err = svc.Update(ctx, bob.ID, p.ID, model.PlaylistUpdate{Name: &name})
	require.ErrorIs(t, err, errs.ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, bob.ID, p.ID), errs.ErrForbidden)

	got, err := svc.Get(ctx, alice.ID, p.ID)
	require.NoError(t, err)
	require.Equal(t, "mine", got.Name)
}

func TestPlaylists_MissingAndMalformedAreNotFound(t *testing.T) {
	_, svc, alice, _ := newPlaylistFixture(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, alice.ID, "gone", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, alice.ID, p.ID))

	for _, id := range []string{p.ID, repotest.MalformedID} {
		_, err = svc.Get(ctx, alice.ID, id)
		require.ErrorIs(t, err, errs.ErrNotFound, id)
		require.NotErrorIs(t, err, errs.ErrInvalidID)
		require.ErrorIs(t, svc.Delete(ctx, alice.ID, id), errs.ErrNotFound)
	}
}

func TestPlaylists_UpdateIsPartial(t *testing.T) {
	_, svc, alice, _ := newPlaylistFixture(t)
	ctx := context.Background()
	songs := []model.Song{{Title: "one"}, {Title: "two"}}
	p, err := svc.Create(ctx, alice.ID, "before", songs)
	require.NoError(t, err)

	name := "after"
	got, err := svc.Update(ctx, alice.ID, p.ID, model.PlaylistUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "after", got.Name)
	require.Equal(t, songs, got.Songs)

	reordered := []model.Song{{Title: "two"}, {Title: "one"}}
	got, err = svc.Update(ctx, alice.ID, p.ID, model.PlaylistUpdate{Songs: &reordered})
	require.NoError(t, err)
	require.Equal(t, "after", got.Name)
	require.Equal(t, reordered, got.Songs)

	empty := ""
	_, err = svc.Update(ctx, alice.ID, p.ID, model.PlaylistUpdate{Name: &empty})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestPlaylists_ListOwnedInCreationOrder(t *testing.T) {
	_, svc, alice, bob := newPlaylistFixture(t)
	ctx := context.Background()

	pairs, err := svc.ListOwned(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, pairs)
	require.Empty(t, pairs)

	var want []model.PlaylistPair
	for _, name := range []string{"c", "a", "b"} {
		p, err := svc.Create(ctx, alice.ID, name, nil)
		require.NoError(t, err)
		want = append(want, model.PlaylistPair{ID: p.ID, Name: name})
	}
	_, err = svc.Create(ctx, bob.ID, "bob's", nil)
	require.NoError(t, err)

	pairs, err = svc.ListOwned(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, want, pairs)
}
