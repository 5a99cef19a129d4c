package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/bounty/internal/auth"
	"github.com/garnizeh/bounty/internal/bounty"
	"github.com/garnizeh/bounty/internal/users"
)

// Services are the engines the HTTP surface delegates to.
type Services struct {
	Auth     *auth.Engine
	Tokens   *auth.TokenCodec
	Bounties *bounty.Engine
	Users    *users.Service
}

func SetupRoutes(version, buildTime string, svc Services) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(svc.Auth)
	bountiesHandler := NewBountiesHandler(svc.Bounties)
	usersHandler := NewUsersHandler(svc.Users)

	protect := BearerAuthMiddleware(svc.Tokens)
	protected := func(h http.HandlerFunc) http.Handler { return protect(h) }

	// Preflight requests match no method-restricted route; this one lets
	// the CORS middleware answer them.
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)

	// Auth endpoints
	r.HandleFunc("/auth/challenge", authHandler.Challenge).Methods(http.MethodPost)
	r.HandleFunc("/auth/verify", authHandler.Verify).Methods(http.MethodPost)
	r.HandleFunc("/auth/dev-login", authHandler.DevLogin).Methods(http.MethodPost)

	// Bounty endpoints
	r.HandleFunc("/bounties", bountiesHandler.List).Methods(http.MethodGet)
	r.Handle("/bounties", protected(bountiesHandler.Create)).Methods(http.MethodPost)
	r.Handle("/bounties/applications/{id}/accept", protected(bountiesHandler.Accept)).Methods(http.MethodPatch)
	r.Handle("/bounties/applications/{id}/reject", protected(bountiesHandler.Reject)).Methods(http.MethodPatch)
	r.Handle("/bounties/applications/{id}/delete", protected(bountiesHandler.DeleteApplication)).Methods(http.MethodPost)
	r.HandleFunc("/bounties/{id}", bountiesHandler.Get).Methods(http.MethodGet)
	r.Handle("/bounties/{id}/apply", protected(bountiesHandler.Apply)).Methods(http.MethodPost)
	r.Handle("/bounties/{id}/applications", protected(bountiesHandler.ListApplications)).Methods(http.MethodGet)

	// User endpoints
	r.Handle("/users/me", protected(usersHandler.Me)).Methods(http.MethodGet)
	r.HandleFunc("/users/leaderboard", usersHandler.Leaderboard).Methods(http.MethodGet)

	return r
}
