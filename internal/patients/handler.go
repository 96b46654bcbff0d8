package patients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"carebase/internal/auth"
)

type Repository interface {
	ListAll(ctx context.Context) ([]Patient, error)
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Insert(ctx context.Context, p *Patient) (*Patient, error)
	Update(ctx context.Context, p *Patient) (*Patient, error)
	Delete(ctx context.Context, id int64) error
}

// Handler serves the patient routes. Every route sits behind the session
// gate, so an identity is always present in the request context.
type Handler struct {
	Store  Repository
	Logger *slog.Logger
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListAll(r.Context())
	if err != nil {
		h.fail(w, "list patients", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w)
		return
	}
	p, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, "get patient", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if !decode(w, r, &in) {
		return
	}
	p, err := in.Patient()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.Store.Insert(r.Context(), p)
	if err != nil {
		h.fail(w, "insert patient", err)
		return
	}
	h.Logger.Info("patient created", "patient_id", created.ID, "by", actor(r))
	writeJSON(w, http.StatusOK, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w)
		return
	}
	var in UpdateInput
	if !decode(w, r, &in) {
		return
	}
	existing, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, "get patient", err)
		return
	}
	p, err := in.Apply(*existing)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.Store.Update(r.Context(), p)
	if err != nil {
		h.fail(w, "update patient", err)
		return
	}
	h.Logger.Info("patient updated", "patient_id", id, "by", actor(r))
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w)
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete patient", err)
		return
	}
	h.Logger.Info("patient deleted", "patient_id", id, "by", actor(r))
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrNotFound) {
		writeNotFound(w)
		return
	}
	h.Logger.Error(op, "err", err)
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

func actor(r *http.Request) int64 {
	id, _ := auth.IdentityFromContext(r.Context())
	return id.UserID
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeNotFound(w http.ResponseWriter) {
	writeMessage(w, http.StatusNotFound, "Patient not found")
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
