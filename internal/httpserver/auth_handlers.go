package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"carebase/internal/auth"
)

// UserFinder resolves the account behind an admitted session.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*auth.User, error)
}

type authHandlers struct {
	svc           *auth.Service
	users         UserFinder
	secureCookies bool
	logger        *slog.Logger
}

type userResponse struct {
	User auth.PublicUser `json:"user"`
}

func (h *authHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Email, req.Password, clientAddr(r))
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, auth.ErrTooManyAttempts):
		writeMessage(w, http.StatusTooManyRequests, "Too many login attempts, try again later")
		return
	case err != nil:
		requestLogger(r, h.logger).Error("login", "err", err)
		writeInternal(w)
		return
	}

	auth.SetSessionCookie(w, sess.Token, h.secureCookies)
	writeJSON(w, http.StatusOK, userResponse{User: sess.User})
}

func (h *authHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	switch {
	case errors.Is(err, auth.ErrUserAlreadyExists):
		writeMessage(w, http.StatusConflict, "User already exists")
		return
	case err != nil:
		requestLogger(r, h.logger).Error("register", "err", err)
		writeInternal(w)
		return
	}

	auth.SetSessionCookie(w, sess.Token, h.secureCookies)
	writeJSON(w, http.StatusOK, userResponse{User: sess.User})
}

// logout only drops the cookie. The token stays valid until it expires.
func (h *authHandlers) logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secureCookies)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *authHandlers) me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		auth.WriteUnauthorized(w)
		return
	}
	u, err := h.users.FindByID(r.Context(), id.UserID)
	if errors.Is(err, auth.ErrUserNotFound) {
		auth.WriteUnauthorized(w)
		return
	}
	if err != nil {
		requestLogger(r, h.logger).Error("load current user", "err", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: u.Public()})
}
