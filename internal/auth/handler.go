package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/drawroom/drawroom/canvas-go/internal/typeid"
)

// Handler serves development credentials. Real accounts live elsewhere.
type Handler struct {
	issuer *Issuer
}

func NewHandler(issuer *Issuer) *Handler {
	return &Handler{issuer: issuer}
}

type devTokenRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type TokenResult struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// DevToken issues a token for the requested identity, minting a user id
// when none is given.
func (h *Handler) DevToken(w http.ResponseWriter, r *http.Request) {
	var req devTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.UserID == "" {
		req.UserID = typeid.NewUserID()
	} else if !typeid.HasPrefix(req.UserID, typeid.PrefixUser) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId must be a user_ id"})
		return
	}
	if req.Name == "" {
		req.Name = "Guest"
	}

	token, err := h.issuer.Issue(req.UserID, req.Name)
	if err != nil {
		slog.Error("issue dev token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, TokenResult{
		Token: token,
		User:  Identity{UserID: req.UserID, Name: req.Name},
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
