package api

import (
	"fmt"
	"net/http"

	"github.com/quillmesh/quillmesh/internal/federation"
)

// InstanceHandler serves GET /instance as an ApubInstance describing
// this process's own identity.
func InstanceHandler(deps Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		instance := deps.LocalInstance()
		if instance == nil {
			http.Error(w, "instance not initialized", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, federation.NewApubInstance(instance))
	})
}

// UserHandler serves GET /users/{name} as an ApubPerson.
func UserHandler(deps Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, err := parseResourceIDFromURL(r.URL.Path, "users")
		if err != nil {
			writeError(w, writeJSONError(http.StatusBadRequest, err.Error()))
			return
		}

		local := deps.LocalInstance()
		if local == nil {
			http.Error(w, "instance not initialized", http.StatusServiceUnavailable)
			return
		}

		person, err := deps.Repo.GetLocalPersonByUsername(r.Context(), local.ID, username)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, federation.NewApubPerson(person, local.InboxURL))
	})
}

// instanceArticlesCollection is a minimal ActivityPub OrderedCollection,
// enough to enumerate owned article ap_ids per spec.md §6.
type instanceArticlesCollection struct {
	Context      string   `json:"@context"`
	Type         string   `json:"type"`
	ID           string   `json:"id"`
	TotalItems   int      `json:"totalItems"`
	OrderedItems []string `json:"orderedItems"`
}

// InstanceArticlesHandler serves GET /instance/articles.
func InstanceArticlesHandler(deps Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		local := deps.LocalInstance()
		if local == nil {
			http.Error(w, "instance not initialized", http.StatusServiceUnavailable)
			return
		}

		articles, err := deps.Store.ListArticles(r.Context(), local.ID, true)
		if err != nil {
			writeError(w, err)
			return
		}

		apIDs := make([]string, 0, len(articles))
		for _, a := range articles {
			apIDs = append(apIDs, a.APID)
		}

		writeJSON(w, instanceArticlesCollection{
			Context:      federation.ActivityStreamsContext,
			Type:         "OrderedCollection",
			ID:           fmt.Sprintf("%s/instance/articles", deps.BaseURL),
			TotalItems:   len(apIDs),
			OrderedItems: apIDs,
		})
	})
}
