package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kuitang/noteful/internal/auth"
	"github.com/kuitang/noteful/internal/errs"
	"github.com/kuitang/noteful/internal/logutil"
	"github.com/kuitang/noteful/internal/notes"
	"github.com/kuitang/noteful/internal/obs"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the collaborators the handlers dispatch to.
type Services struct {
	Notes   *notes.Service
	Folders *notes.Catalog
	Tags    *notes.Catalog
	Users   *auth.UserService
	Tokens  *auth.TokenService
	DB      Pinger
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// Handler serves the JSON API.
type Handler struct {
	svc  Services
	auth *auth.Middleware
}

// NewHandler creates a new API handler.
func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc, auth: auth.NewMiddleware(svc.Tokens)}
}

// RegisterRoutes registers every route on mux using Go 1.22+ routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/notes", h.authed(h.ListNotes))
	mux.Handle("GET /api/notes/{id}", h.authed(h.GetNote))
	mux.Handle("POST /api/notes", h.authed(h.CreateNote))
	mux.Handle("PUT /api/notes/{id}", h.authed(h.UpdateNote))
	mux.Handle("DELETE /api/notes/{id}", h.authed(h.DeleteNote))

	h.registerCatalog(mux, "/api/folders", h.svc.Folders)
	h.registerCatalog(mux, "/api/tags", h.svc.Tags)

	mux.HandleFunc("POST /api/users", h.Register)
	mux.HandleFunc("POST /api/login", h.Login)
	mux.Handle("POST /api/refresh", h.authed(h.Refresh))

	mux.HandleFunc("GET /healthz", h.Health)
	if h.svc.Metrics != nil {
		mux.Handle("GET /metrics", h.svc.Metrics)
	}
}

func (h *Handler) authed(fn http.HandlerFunc) http.Handler {
	return h.auth.RequireAuth(fn)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DB.Ping(r.Context()); err != nil {
		writeError(w, r, errs.Wrap(errs.Unavailable, "database unavailable", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// owner returns the authenticated caller as a notes.Owner.
func owner(r *http.Request) (notes.Owner, error) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return notes.Owner{}, errs.New(errs.Unauthenticated, "Unauthorized")
	}
	return notes.NewOwner(id.ID)
}

var errBadJSON = errs.New(errs.InvalidArgument, "Invalid JSON body")

// decodeJSON reads a single JSON value from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.InvalidArgument, "Invalid JSON body", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errBadJSON
	}
	return nil
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps err to its status and body. Untyped errors become 500
// "internal error" and are logged with redacted request headers.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).Error("request failed",
			"pkg", "api",
			"route", obs.RouteOf(r),
			"error", err,
			"headers", logutil.FormatHeadersForLog(r.Header),
		)
	}
	writeJSON(w, status, ErrorResponse{
		Code:     string(code),
		Message:  errs.MessageOf(err),
		Location: errs.LocationOf(err),
	})
}
