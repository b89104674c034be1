package server

import (
	"net/http"

	"beatmarket/core/resource"

	"github.com/gorilla/mux"
)

// registerResource mounts the CRUD routes of one registry entry.
func (h *APIHandler) registerResource(api *mux.Router, e *resource.Engine) {
	base := "/" + e.Resource().Name
	api.HandleFunc(base, h.listHandler(e)).Methods(http.MethodGet)
	api.HandleFunc(base, h.createHandler(e)).Methods(http.MethodPost)
	api.HandleFunc(base+"/{id}", h.readHandler(e)).Methods(http.MethodGet)
	api.HandleFunc(base+"/{id}", h.updateHandler(e, "")).Methods(http.MethodPut)
	api.HandleFunc(base+"/{id}", h.deleteHandler(e)).Methods(http.MethodDelete)
}

func opTag(res *resource.Resource) string {
	return "[" + res.Label + "]"
}

func (h *APIHandler) listHandler(e *resource.Engine) http.HandlerFunc {
	res := e.Resource()
	return func(w http.ResponseWriter, r *http.Request) {
		opts := resource.ListOptions{IncludeInactive: queryBool(r, "includeInactive")}
		for key, vals := range r.URL.Query() {
			if key == "includeInactive" || len(vals) == 0 {
				continue
			}
			if opts.Match == nil {
				opts.Match = map[string]string{}
			}
			opts.Match[key] = vals[0]
		}

		items, err := e.List(r.Context(), opts)
		if err != nil {
			writeError(w, opTag(res), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			res.Plural: items,
		})
	}
}

func (h *APIHandler) createHandler(e *resource.Engine) http.HandlerFunc {
	res := e.Resource()
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := readPayload(r)
		if err != nil {
			writeError(w, opTag(res), err)
			return
		}
		item, err := e.Create(r.Context(), payload)
		if err != nil {
			writeError(w, opTag(res), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success":    true,
			"message":    res.DisplayTitle() + " created successfully",
			res.Singular: item,
		})
	}
}

func (h *APIHandler) readHandler(e *resource.Engine) http.HandlerFunc {
	res := e.Resource()
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := e.Read(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeError(w, opTag(res), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			res.Singular: item,
		})
	}
}

// updateHandler applies a partial update. message overrides the default
// success message.
func (h *APIHandler) updateHandler(e *resource.Engine, message string) http.HandlerFunc {
	res := e.Resource()
	if message == "" {
		message = res.DisplayTitle() + " updated successfully"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := readPayload(r)
		if err != nil {
			writeError(w, opTag(res), err)
			return
		}
		item, err := e.Update(r.Context(), mux.Vars(r)["id"], payload)
		if err != nil {
			writeError(w, opTag(res), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"message":    message,
			res.Singular: item,
		})
	}
}

func (h *APIHandler) deleteHandler(e *resource.Engine) http.HandlerFunc {
	res := e.Resource()
	return func(w http.ResponseWriter, r *http.Request) {
		if err := e.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
			writeError(w, opTag(res), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": res.DisplayTitle() + " deleted successfully",
		})
	}
}
