package api

import (
	"encoding/json"
	"net/http"

	"github.com/quillmesh/quillmesh/internal/federation"
)

// ObjectsArticleHandler serves GET /objects/articles/{id} as an
// ApubArticle.
func ObjectsArticleHandler(deps Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		article, err := deps.Store.GetArticleByAPID(r.Context(), deps.BaseURL+r.URL.Path)
		if err != nil {
			writeError(w, err)
			return
		}

		instance, err := deps.Repo.GetLocalInstance(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, federation.NewApubArticle(article, instance.APID))
	})
}

// ObjectsEditHandler serves GET /objects/edits/{id} as an ApubEdit.
func ObjectsEditHandler(deps Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		edit, err := deps.Repo.GetEditByAPID(r.Context(), deps.BaseURL+r.URL.Path)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, federation.NewApubEdit(edit))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/activity+json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
