package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/metrics"
	"github.com/and161185/playlister/internal/model"
	"github.com/and161185/playlister/internal/service"
)

// Identity is the account surface used by the auth routes.
type Identity interface {
	Register(ctx context.Context, in service.RegisterInput) (service.Session, string, error)
	LoginFrom(ctx context.Context, email, password, client string) (service.Session, string, error)
	Logout(ctx context.Context, tok string) service.Session
	WhoAmI(ctx context.Context, tok string) (service.Session, error)
}

// Playlists is the playlist surface used by the store routes.
type Playlists interface {
	Create(ctx context.Context, userID, name string, songs []model.Song) (*model.Playlist, error)
	Get(ctx context.Context, userID, id string) (*model.Playlist, error)
	ListOwned(ctx context.Context, userID string) ([]model.PlaylistPair, error)
	Update(ctx context.Context, userID, id string, upd model.PlaylistUpdate) (*model.Playlist, error)
	Delete(ctx context.Context, userID, id string) error
}

var (
	_ Identity  = (*service.IdentityService)(nil)
	_ Playlists = (*service.PlaylistService)(nil)
)

type handlers struct {
	identity  Identity
	playlists Playlists
	cookies   sessionCookies
	metrics   *metrics.Metrics
	maxBody   int64
	log       *zap.Logger
}

// --- Auth ---

type registerRequest struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	PasswordVerify string `json:"passwordVerify"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userBody struct {
	Success bool             `json:"success"`
	User    model.PublicUser `json:"user"`
}

type loggedInBody struct {
	LoggedIn     bool              `json:"loggedIn"`
	User         *model.PublicUser `json:"user"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}

type successBody struct {
	Success bool `json:"success"`
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, h.maxBody, &req) {
		return
	}
	s, tok, err := h.identity.Register(r.Context(), service.RegisterInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Password:       req.Password,
		PasswordVerify: req.PasswordVerify,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cookies.set(w, tok)
	writeJSON(w, http.StatusOK, userBody{Success: true, User: s.User})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, h.maxBody, &req) {
		return
	}
	s, tok, err := h.identity.LoginFrom(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		h.countLoginFailure(err)
		h.writeError(w, r, err)
		return
	}
	h.cookies.set(w, tok)
	writeJSON(w, http.StatusOK, userBody{Success: true, User: s.User})
}

func (h *handlers) countLoginFailure(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, errs.ErrInvalidCredentials):
		h.metrics.LoginFailures.WithLabelValues("invalid_credentials").Inc()
	case errors.Is(err, errs.ErrRateLimited):
		h.metrics.LoginFailures.WithLabelValues("locked").Inc()
	case errors.Is(err, errs.ErrValidation):
		h.metrics.LoginFailures.WithLabelValues("invalid_input").Inc()
	}
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.identity.Logout(r.Context(), tokenFrom(r))
	h.cookies.clear(w)
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (h *handlers) loggedIn(w http.ResponseWriter, r *http.Request) {
	s, err := h.identity.WhoAmI(r.Context(), tokenFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !s.LoggedIn() {
		writeJSON(w, http.StatusOK, loggedInBody{LoggedIn: false})
		return
	}
	u := s.User
	writeJSON(w, http.StatusOK, loggedInBody{LoggedIn: true, User: &u})
}

// --- Store ---

type playlistJSON struct {
	ID         string       `json:"_id"`
	Name       string       `json:"name"`
	OwnerEmail string       `json:"ownerEmail"`
	Songs      []model.Song `json:"songs"`
}

func toPlaylistJSON(p *model.Playlist) playlistJSON {
	return playlistJSON{ID: p.ID, Name: p.Name, OwnerEmail: p.OwnerEmail, Songs: model.NonNilSongs(p.Songs)}
}

// createPlaylistRequest ignores any ownerEmail sent by the client; the owner is the caller.
type createPlaylistRequest struct {
	Name  string       `json:"name"`
	Songs []model.Song `json:"songs"`
}

type updatePlaylistRequest struct {
	Playlist struct {
		Name  *string       `json:"name"`
		Songs *[]model.Song `json:"songs"`
	} `json:"playlist"`
}

type playlistBody struct {
	Success  bool         `json:"success"`
	ID       string       `json:"id,omitempty"`
	Playlist playlistJSON `json:"playlist"`
}

type pairsBody struct {
	Success     bool                 `json:"success"`
	IDNamePairs []model.PlaylistPair `json:"idNamePairs"`
}

func (h *handlers) createPlaylist(w http.ResponseWriter, r *http.Request) {
	s, _ := SessionFromCtx(r.Context())
	var req createPlaylistRequest
	if !decode(w, r, h.maxBody, &req) {
		return
	}
	p, err := h.playlists.Create(r.Context(), s.UserID, req.Name, req.Songs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, playlistBody{Success: true, Playlist: toPlaylistJSON(p)})
}

func (h *handlers) getPlaylist(w http.ResponseWriter, r *http.Request) {
	s, _ := SessionFromCtx(r.Context())
	p, err := h.playlists.Get(r.Context(), s.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlistBody{Success: true, Playlist: toPlaylistJSON(p)})
}

func (h *handlers) updatePlaylist(w http.ResponseWriter, r *http.Request) {
	s, _ := SessionFromCtx(r.Context())
	var req updatePlaylistRequest
	if !decode(w, r, h.maxBody, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	p, err := h.playlists.Update(r.Context(), s.UserID, id, model.PlaylistUpdate{
		Name:  req.Playlist.Name,
		Songs: req.Playlist.Songs,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlistBody{Success: true, ID: p.ID, Playlist: toPlaylistJSON(p)})
}

func (h *handlers) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	s, _ := SessionFromCtx(r.Context())
	if err := h.playlists.Delete(r.Context(), s.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (h *handlers) playlistPairs(w http.ResponseWriter, r *http.Request) {
	s, _ := SessionFromCtx(r.Context())
	pairs, err := h.playlists.ListOwned(r.Context(), s.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if pairs == nil {
		pairs = []model.PlaylistPair{}
	}
	writeJSON(w, http.StatusOK, pairsBody{Success: true, IDNamePairs: pairs})
}
