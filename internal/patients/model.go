package patients

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// DOBLayout is the only accepted date of birth format.
const DOBLayout = "2006-01-02"

var (
	ErrNotFound   = errors.New("patient not found")
	ErrValidation = errors.New("invalid patient")
)

type Patient struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	DOB         string    `json:"dob"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FieldError names the offending field. It matches ErrValidation.
type FieldError struct {
	Field   string
	Problem string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Problem)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

type CreateInput struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	DOB         string `json:"dob"`
}

// UpdateInput is a partial update; nil fields keep their stored value.
type UpdateInput struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
	DOB         *string `json:"dob"`
}

func (in CreateInput) Patient() (*Patient, error) {
	p := &Patient{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       strings.TrimSpace(in.Email),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		DOB:         strings.TrimSpace(in.DOB),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply merges in onto a copy of p and validates the result.
func (in UpdateInput) Apply(p Patient) (*Patient, error) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.FirstName, in.FirstName)
	set(&p.LastName, in.LastName)
	set(&p.Email, in.Email)
	set(&p.PhoneNumber, in.PhoneNumber)
	set(&p.DOB, in.DOB)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Patient) Validate() error {
	required := []struct {
		field, value string
	}{
		{"firstName", p.FirstName},
		{"lastName", p.LastName},
		{"email", p.Email},
		{"phoneNumber", p.PhoneNumber},
		{"dob", p.DOB},
	}
	for _, r := range required {
		if r.value == "" {
			return &FieldError{Field: r.field, Problem: "is required"}
		}
	}
	if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
		return &FieldError{Field: "email", Problem: "is not a valid address"}
	}
	dob, err := time.Parse(DOBLayout, p.DOB)
	if err != nil {
		return &FieldError{Field: "dob", Problem: "must be YYYY-MM-DD"}
	}
	if dob.After(time.Now()) {
		return &FieldError{Field: "dob", Problem: "is in the future"}
	}
	return nil
}
