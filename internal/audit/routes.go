package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// IdentityFunc reports the authenticated user for a request. The server
// injects it so audit endpoints can attribute administrative actions without
// this package depending on auth.
type IdentityFunc func(r *http.Request) (username, userID string)

// RegisterRoutes mounts audit endpoints under /audit on the given router.
// The server nests this under the admin route group.
func RegisterRoutes(r chi.Router, store *Store, identify IdentityFunc) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", handleQuery(store))
		r.Get("/stats", handleStats(store))
		r.Get("/{id}", handleGetByID(store))
		r.Delete("/", handlePrune(store, identify))
	})
}

func handleQuery(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := QueryFilter{
			Username: q.Get("username"),
			Limit:    100,
		}

		if v := q.Get("action"); v != "" {
			filter.Action = Action(v)
		}
		if v := q.Get("success"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				filter.Success = &b
			}
		}
		if v := q.Get("since"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				filter.Since = &t
			}
		}
		if v := q.Get("until"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				filter.Until = &t
			}
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}

		entries, err := store.Query(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []Entry{}
		}

		writeJSON(w, http.StatusOK, entries)
	}
}

func handleStats(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, err := store.Count(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		byAction, err := store.CountByAction(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"total":     total,
			"by_action": byAction,
		})
	}
}

func handleGetByID(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		entry, err := store.GetByID(r.Context(), id)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, entry)
	}
}

func handlePrune(store *Store, identify IdentityFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		before, err := time.Parse(time.RFC3339, r.URL.Query().Get("before"))
		if err != nil {
			http.Error(w, "before must be an RFC3339 timestamp", http.StatusBadRequest)
			return
		}

		deleted, err := store.DeleteBefore(r.Context(), before)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		username, userID := "", ""
		if identify != nil {
			username, userID = identify(r)
		}
		Record(r.Context(), store, Entry{
			Action:   ActionAuditPrune,
			Username: username,
			UserID:   userID,
			Success:  true,
			Detail:   strconv.FormatInt(deleted, 10) + " entries removed",
		})

		writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
