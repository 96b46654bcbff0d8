package httpserver

import (
	"log/slog"
	"net/http"

	"carebase/internal/auth"
	"carebase/internal/patients"
)

type Deps struct {
	Logger        *slog.Logger
	Auth          *auth.Service
	Verifier      auth.Verifier
	Users         UserFinder
	Patients      patients.Repository
	FrontendURL   string
	SecureCookies bool
}

func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth
	ah := &authHandlers{
		svc:           d.Auth,
		users:         d.Users,
		secureCookies: d.SecureCookies,
		logger:        d.Logger,
	}
	mux.HandleFunc("POST /auth/login", ah.login)
	mux.HandleFunc("POST /auth/register", ah.register)
	mux.HandleFunc("POST /auth/logout", ah.logout)

	secured := auth.RequireSession(d.Verifier, d.Logger)
	mux.Handle("GET /auth/me", secured(http.HandlerFunc(ah.me)))

	// Patients
	ph := &patients.Handler{Store: d.Patients, Logger: d.Logger}
	mux.Handle("GET /patients", secured(http.HandlerFunc(ph.List)))
	mux.Handle("POST /patients", secured(http.HandlerFunc(ph.Create)))
	mux.Handle("GET /patients/{id}", secured(http.HandlerFunc(ph.Get)))
	mux.Handle("PATCH /patients/{id}", secured(http.HandlerFunc(ph.Update)))
	mux.Handle("DELETE /patients/{id}", secured(http.HandlerFunc(ph.Delete)))

	var h http.Handler = mux
	h = withBodyLimit(h)
	h = withRecover(d.Logger, h)
	h = withCORS(d.FrontendURL, h)
	h = withRequestLogging(d.Logger, h)
	return h
}
