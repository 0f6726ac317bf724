package api

import (
	"net/http"

	"github.com/kuitang/noteful/internal/auth"
	"github.com/kuitang/noteful/internal/errs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AuthToken string `json:"authToken"`
}

// Register handles POST /api/users. The body is decoded loosely so type
// errors can be reported per field.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body == nil {
		body = map[string]any{}
	}
	user, err := h.svc.Users.Register(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/users/"+user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, errs.Wrap(errs.InvalidArgument, "Bad Request", err))
		return
	}
	user, err := h.svc.Users.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.svc.Tokens.Issue(auth.TokenUser{ID: user.ID, Username: user.Username, FullName: user.FullName})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AuthToken: token})
}

// Refresh handles POST /api/refresh with a still-valid bearer token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	bearer, _ := auth.BearerToken(r)
	token, err := h.svc.Tokens.Refresh(bearer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AuthToken: token})
}
