package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/aiservices/internal/personality"
)

type PersonalityHandler struct {
	store PersonalityStore
}

func NewPersonalityHandler(store PersonalityStore) *PersonalityHandler {
	return &PersonalityHandler{store: store}
}

func (h *PersonalityHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *PersonalityHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Load(chi.URLParam(r, "id"))
	if errors.Is(err, personality.ErrNotFound) || errors.Is(err, personality.ErrInvalidID) {
		writeError(w, http.StatusNotFound, "Personality not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PersonalityHandler) Save(w http.ResponseWriter, r *http.Request) {
	var p personality.Personality
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := p.ID()
	if id == "" {
		writeError(w, http.StatusBadRequest, "`id` field is required")
		return
	}
	if err := h.store.Save(id, p); err != nil {
		if errors.Is(err, personality.ErrInvalidID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": fmt.Sprintf("Personality '%s' saved.", id),
	})
}
