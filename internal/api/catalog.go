package api

import (
	"net/http"

	"github.com/kuitang/noteful/internal/notes"
)

type entryBody struct {
	Name string `json:"name"`
}

func (h *Handler) registerCatalog(mux *http.ServeMux, base string, c *notes.Catalog) {
	mux.Handle("GET "+base, h.authed(func(w http.ResponseWriter, r *http.Request) {
		o, err := owner(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		entries, err := c.List(r.Context(), o)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}))

	mux.Handle("GET "+base+"/{id}", h.authed(func(w http.ResponseWriter, r *http.Request) {
		o, err := owner(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		entry, err := c.Get(r.Context(), o, r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}))

	mux.Handle("POST "+base, h.authed(func(w http.ResponseWriter, r *http.Request) {
		o, err := owner(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var body entryBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		entry, err := c.Create(r.Context(), o, body.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Location", base+"/"+entry.ID)
		writeJSON(w, http.StatusCreated, entry)
	}))

	mux.Handle("PUT "+base+"/{id}", h.authed(func(w http.ResponseWriter, r *http.Request) {
		o, err := owner(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var body entryBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		entry, err := c.Rename(r.Context(), o, r.PathValue("id"), body.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}))

	mux.Handle("DELETE "+base+"/{id}", h.authed(func(w http.ResponseWriter, r *http.Request) {
		o, err := owner(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := c.Delete(r.Context(), o, r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}
