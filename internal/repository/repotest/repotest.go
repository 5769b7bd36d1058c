// Package repotest holds the behavioural suite every repository.Engine must pass.
//
// Adapters call Run from their own tests with a factory returning a fresh,
// not yet connected engine. The suite connects it, wipes it between cases and
// disconnects it on cleanup, so it must only be pointed at disposable databases.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/model"
	"github.com/and161185/playlister/internal/repository"
)

// Factory returns a new engine that has not been connected yet.
type Factory func(t *testing.T) repository.Engine

// MalformedID is not a valid identifier for any engine.
const MalformedID = "not-an-id"

// Run executes the conformance suite against engines produced by newEngine.
func Run(t *testing.T, newEngine Factory) {
	t.Run("NotInitialized", func(t *testing.T) { testNotInitialized(t, newEngine) })

	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Connect(ctx))
	t.Cleanup(func() { _ = e.Disconnect(context.Background()) })

	cases := []struct {
		name string
		fn   func(t *testing.T, e repository.Engine)
	}{
		{"UserLifecycle", testUserLifecycle},
		{"DuplicateEmail", testDuplicateEmail},
		{"MalformedIdentifiers", testMalformedIDs},
		{"MissingRecords", testMissingRecords},
		{"UserPartialUpdate", testUserPartialUpdate},
		{"AddPlaylistToUser", testAddPlaylistToUser},
		{"PlaylistPartialUpdate", testPlaylistPartialUpdate},
		{"PlaylistsByOwner", testPlaylistsByOwner},
		{"DeleteAll", testDeleteAll},
		{"DeleteIsIdempotent", testDeleteIdempotent},
		{"ConcurrentAppends", testConcurrentAppends},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reset(t, e)
			tc.fn(t, e)
		})
	}
}

func reset(t *testing.T, e repository.Engine) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.DeleteAllPlaylists(ctx))
	require.NoError(t, e.DeleteAllUsers(ctx))
}

func newUser(email string) model.NewUser {
	return model.NewUser{FirstName: "Ada", LastName: "Lovelace", Email: email, PasswordDigest: "digest-1"}
}

func songs(titles ...string) []model.Song {
	out := make([]model.Song, 0, len(titles))
	for i, title := range titles {
		out = append(out, model.Song{Title: title, Artist: "Artist", Year: 1990 + i, YouTubeID: "yt" + title})
	}
	return out
}

// absentUserID returns a well-formed id that no longer resolves.
func absentUserID(t *testing.T, e repository.Engine) string {
	t.Helper()
	ctx := context.Background()
	u, err := e.CreateUser(ctx, newUser("ghost@example.com"))
	require.NoError(t, err)
	require.NoError(t, e.DeleteUser(ctx, u.ID))
	return u.ID
}

func absentPlaylistID(t *testing.T, e repository.Engine) string {
	t.Helper()
	ctx := context.Background()
	p, err := e.CreatePlaylist(ctx, model.NewPlaylist{Name: "ghost", OwnerEmail: "ghost@example.com"})
	require.NoError(t, err)
	require.NoError(t, e.DeletePlaylist(ctx, p.ID))
	return p.ID
}

func testNotInitialized(t *testing.T, newEngine Factory) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.FindUserByEmail(ctx, "a@b.com")
	require.ErrorIs(t, err, errs.ErrNotInitialized)
	_, err = e.GetAllPlaylists(ctx)
	require.ErrorIs(t, err, errs.ErrNotInitialized)
	require.ErrorIs(t, e.DeleteAllUsers(ctx), errs.ErrNotInitialized)

	// Connection state wins over id shape.
	name := "x"
	_, err = e.FindUserByID(ctx, MalformedID)
	require.ErrorIs(t, err, errs.ErrNotInitialized)
	_, err = e.UpdateUser(ctx, MalformedID, model.UserUpdate{FirstName: &name})
	require.ErrorIs(t, err, errs.ErrNotInitialized)
	_, err = e.AddPlaylistToUser(ctx, MalformedID, MalformedID)
	require.ErrorIs(t, err, errs.ErrNotInitialized)
	_, err = e.FindPlaylistByID(ctx, MalformedID)
	require.ErrorIs(t, err, errs.ErrNotInitialized)
	_, err = e.UpdatePlaylist(ctx, MalformedID, model.PlaylistUpdate{Name: &name})
	require.ErrorIs(t, err, errs.ErrNotInitialized)
	require.ErrorIs(t, e.DeletePlaylist(ctx, MalformedID), errs.ErrNotInitialized)
	require.ErrorIs(t, e.DeleteUser(ctx, MalformedID), errs.ErrNotInitialized)

	require.NoError(t, e.Connect(ctx))
	_, err = e.FindUserByEmail(ctx, "a@b.com")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, e.Disconnect(ctx))
	require.NoError(t, e.Disconnect(ctx))
	_, err = e.CreatePlaylist(ctx, model.NewPlaylist{Name: "x", OwnerEmail: "a@b.com"})
	require.ErrorIs(t, err, errs.ErrNotInitialized)
}

func testUserLifecycle(t *testing.T, e repository.Engine) {
	ctx := context.Background()

	created, err := e.CreateUser(ctx, newUser("ada@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "ada@example.com", created.Email)
	require.Equal(t, "digest-1", created.PasswordDigest)
	require.Empty(t, created.PlaylistRefs)

	found, err := e.FindUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, "Ada", found.FirstName)
	require.Equal(t, "Lovelace", found.LastName)

	byID, err := e.FindUserByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, found.Email, byID.Email)

	first := "Augusta"
	updated, err := e.UpdateUser(ctx, created.ID, model.UserUpdate{FirstName: &first})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, "Augusta", updated.FirstName)
	require.Equal(t, "Lovelace", updated.LastName)
	require.Equal(t, "ada@example.com", updated.Email)

	require.NoError(t, e.DeleteUser(ctx, created.ID))

	_, err = e.FindUserByID(ctx, created.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = e.FindUserByEmail(ctx, "ada@example.com")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func testDuplicateEmail(t *testing.T, e repository.Engine) {
	ctx := context.Background()

	first, err := e.CreateUser(ctx, newUser("dup@example.com"))
	require.NoError(t, err)

	second := newUser("dup@example.com")
	second.FirstName = "Other"
	_, err = e.CreateUser(ctx, second)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	found, err := e.FindUserByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)
	require.Equal(t, "Ada", found.FirstName)
}

func testMalformedIDs(t *testing.T, e repository.Engine) {
	ctx := context.Background()

	u, err := e.CreateUser(ctx, newUser("ids@example.com"))
	require.NoError(t, err)
	p, err := e.CreatePlaylist(ctx, model.NewPlaylist{Name: "p", OwnerEmail: u.Email})
	require.NoError(t, err)

	name := "x"
	_, err = e.FindUserByID(ctx, MalformedID)
	require.ErrorIs(t, err, errs.ErrInvalidID)
	_, err = e.UpdateUser(ctx, MalformedID, model.UserUpdate{FirstName: &name})
	require.ErrorIs(t, err, errs.ErrInvalidID)
	_, err = e.AddPlaylistToUser(ctx, MalformedID, p.ID)
	require.ErrorIs(t, err, errs.ErrInvalidID)
	_, err = e.AddPlaylistToUser(ctx, u.ID, MalformedID)
	require.ErrorIs(t, err, errs.ErrInvalidID)
	_, err = e.FindPlaylistByID(ctx, MalformedID)
	require.ErrorIs(t, err, errs.ErrInvalidID)
	_, err = e.UpdatePlaylist(ctx, MalformedID, model.PlaylistUpdate{Name: &name})
	require.ErrorIs(t, err, errs.ErrInvalidID)

	// Malformed ids read as "absent" for callers.
	require.True(t, errs.IsNotFound(errs.ErrInvalidID))
}

func testMissingRecords(t *testing.T, e repository.Engine) {
	ctx := context.Background()
	userID := absentUserID(t, e)
	playlistID := absentPlaylistID(t, e)
	name := "x"

	_, err := e.FindUserByID(ctx, userID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = e.UpdateUser(ctx, userID, model.UserUpdate{FirstName: &name})
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = e.UpdateUser(ctx, userID, model.UserUpdate{})
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = e.AddPlaylistToUser(ctx, userID, playlistID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = e.FindPlaylistByID(ctx, playlistID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = e.UpdatePlaylist(ctx, playlistID, model.PlaylistUpdate{Name: &name})
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = e.UpdatePlaylist(ctx, playlistID, model.PlaylistUpdate{})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func testUserPartialUpdate(t *testing.T, e repository.Engine) {
	ctx := context.Background()
	u, err := e.CreateUser(ctx, newUser("partial@example.com"))
	require.NoError(t, err)

	digest := "digest-2"
	got, err := e.UpdateUser(ctx, u.ID, model.UserUpdate{PasswordDigest: &digest})
	require.NoError(t, err)
	require.Equal(t, "digest-2", got.PasswordDigest)
	require.Equal(t, "Ada", got.FirstName)
	require.Equal(t, "Lovelace", got.LastName)

	got, err = e.UpdateUser(ctx, u.ID, model.UserUpdate{})
	require.NoError(t, err)
	require.Equal(t, "digest-2", got.PasswordDigest)
}

func testAddPlaylistToUser(t *testing.T, e repository.Engine) {
	ctx := context.Background()
	u, err := e.CreateUser(ctx, newUser("owner@example.com"))
	require.NoError(t, err)

	p1, err := e.CreatePlaylist(ctx, model.NewPlaylist{Name: "one", OwnerEmail: u.Email, Songs: songs("a")})
	require.NoError(t, err)
	p2, err := e.CreatePlaylist(ctx, model.NewPlaylist{Name: "two", OwnerEmail: u.Email})
	require.NoError(t, err)

	got, err := e.AddPlaylistToUser(ctx, u.ID, p1.ID)
	require.NoError(t, err)
	require.Equal(t, []string{p1.ID}, got.PlaylistRefs)

	got, err = e.AddPlaylistToUser(ctx, u.ID, p2.ID)
	require.NoError(t, err)
	require.Equal(t, []string{p1.ID, p2.ID}, got.PlaylistRefs)
	require.Equal(t, "owner@example.com", got.Email)
	require.Equal(t, "digest-1", got.PasswordDigest)

	reread, err := e.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, []string{p1.ID, p2.ID}, reread.PlaylistRefs)
}

func testPlaylistPartialUpdate(t *testing.T, e repository.Engine) {
	ctx := context.Background()
	orig := songs("a", "b")
	p, err := e.CreatePlaylist(ctx, model.NewPlaylist{Name: "Mix", OwnerEmail: "o@example.com", Songs: orig})
	require.NoError(t, err)
	require.Equal(t, orig, p.Songs)

	name := "X"
	got, err := e.UpdatePlaylist(ctx, p.ID, model.PlaylistUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "X", got.Name)
	require.Equal(t, orig, got.Songs)
	require.Equal(t, "o@example.com", got.OwnerEmail)

	replaced := songs("c")
	got, err = e.UpdatePlaylist(ctx, p.ID, model.PlaylistUpdate{Songs: &replaced})
	require.NoError(t, err)
	require.Equal(t, "X", got.Name)
	require.Equal(t, replaced, got.Songs)

	empty := []model.Song{}
	got, err = e.UpdatePlaylist(ctx, p.ID, model.PlaylistUpdate{Songs: &empty})
	require.NoError(t, err)
	require.NotNil(t, got.Songs)
	require.Empty(t, got.Songs)

	reread, err := e.FindPlaylistByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "X", reread.Name)
	require.NotNil(t, reread.Songs)
	require.Empty(t, reread.Songs)
}

func testPlaylistsByOwner(t *testing.T, e repository.Engine) {
	ctx := context.Background()
	var ids []string
	for i, owner := range []string{"a@example.com", "b@example.com", "a@example.com"} {
		p, err := e.CreatePlaylist(ctx, model.NewPlaylist{Name: fmt.Sprintf("p%d", i), OwnerEmail: owner})
		require.NoError(t, err)
		require.NotNil(t, p.Songs)
		ids = append(ids, p.ID)
	}

	owned, err := e.FindPlaylistsByOwnerEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, ids[0], owned[0].ID)
	require.Equal(t, ids[2], owned[1].ID)

	none, err := e.FindPlaylistsByOwnerEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)

	all, err := e.GetAllPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := range all {
		require.Equal(t, ids[i], all[i].ID)
	}
}

func testDeleteAll(t *testing.T, e repository.Engine) {
	ctx := context.Background()
	emails := []string{"x@example.com", "y@example.com"}
	for _, email := range emails {
		_, err := e.CreateUser(ctx, newUser(email))
		require.NoError(t, err)
		_, err = e.CreatePlaylist(ctx, model.NewPlaylist{Name: "p", OwnerEmail: email})
		require.NoError(t, err)
	}

	require.NoError(t, e.DeleteAllUsers(ctx))
	for _, email := range emails {
		_, err := e.FindUserByEmail(ctx, email)
		require.ErrorIs(t, err, errs.ErrNotFound)
	}

	require.NoError(t, e.DeleteAllPlaylists(ctx))
	all, err := e.GetAllPlaylists(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	// Emails are free again.
	_, err = e.CreateUser(ctx, newUser(emails[0]))
	require.NoError(t, err)
}

func testDeleteIdempotent(t *testing.T, e repository.Engine) {
	ctx := context.Background()
	u, err := e.CreateUser(ctx, newUser("del@example.com"))
	require.NoError(t, err)
	p, err := e.CreatePlaylist(ctx, model.NewPlaylist{Name: "p", OwnerEmail: u.Email})
	require.NoError(t, err)

	require.NoError(t, e.DeleteUser(ctx, u.ID))
	require.NoError(t, e.DeleteUser(ctx, u.ID))
	require.NoError(t, e.DeletePlaylist(ctx, p.ID))
	require.NoError(t, e.DeletePlaylist(ctx, p.ID))

	_, err = e.FindPlaylistByID(ctx, p.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func testConcurrentAppends(t *testing.T, e repository.Engine) {
	ctx := context.Background()
	u, err := e.CreateUser(ctx, newUser("busy@example.com"))
	require.NoError(t, err)

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		p, err := e.CreatePlaylist(ctx, model.NewPlaylist{Name: fmt.Sprintf("p%d", i), OwnerEmail: u.Email})
		require.NoError(t, err)
		ids[i] = p.ID
	}

	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := e.AddPlaylistToUser(ctx, u.ID, id); err != nil {
				errCh <- err
			}
		}(id)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	got, err := e.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, ids, got.PlaylistRefs)
}
