package httpserver

import (
	"errors"
	"net/mail"
	"strings"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *loginRequest) validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || r.Password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

// registerRequest is decoded leniently: extra fields, role included, are
// ignored.
type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (r *registerRequest) validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)

	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return errors.New("email is not a valid address")
	}
	if len(r.Password) < minPasswordLen || len(r.Password) > maxPasswordLen {
		return errors.New("password must be 8 to 72 bytes long")
	}
	if r.FirstName == "" || r.LastName == "" {
		return errors.New("firstName and lastName are required")
	}
	return nil
}
