// Package httpserver exposes the identity and playlist services over HTTP.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/playlister/internal/config"
	"github.com/and161185/playlister/internal/metrics"
)

// Deps wires services and policy into the router.
type Deps struct {
	Identity  Identity
	Playlists Playlists
	Log       *zap.Logger

	Cookie     config.CookiePolicy
	SessionTTL time.Duration
	CORSOrigin string

	// TrustProxy takes the client address from forwarding headers.
	// Off, throttling and lockouts key on the TCP peer.
	TrustProxy bool

	// AuthRate limits /auth requests per client per second; 0 disables.
	AuthRate  float64
	AuthBurst int

	MaxBodyBytes int64

	// Optional.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Ready    func(ctx context.Context) error
}

// NewRouter builds the HTTP handler tree.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &handlers{
		identity:  d.Identity,
		playlists: d.Playlists,
		cookies:   sessionCookies{policy: d.Cookie, ttl: d.SessionTTL},
		metrics:   d.Metrics,
		maxBody:   d.MaxBodyBytes,
		log:       log,
	}

	r := chi.NewRouter()
	if d.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(Recoverer(log))
	r.Use(CORS(d.CORSOrigin))
	r.Use(Instrument(d.Metrics))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyz(d.Ready))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	throttle := NewThrottle(d.AuthRate, d.AuthBurst)
	r.Route("/auth", func(r chi.Router) {
		r.Use(throttle.Middleware)
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Get("/logout", h.logout)
		r.Get("/loggedIn", h.loggedIn)
	})

	r.Route("/store", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/playlist", h.createPlaylist)
		r.Get("/playlist/{id}", h.getPlaylist)
		r.Put("/playlist/{id}", h.updatePlaylist)
		r.Delete("/playlist/{id}", h.deletePlaylist)
		r.Get("/playlistpairs", h.playlistPairs)
	})
	return r
}

func readyz(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
