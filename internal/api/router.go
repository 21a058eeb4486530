package api

import "net/http"

// NewRouter wires every endpoint enumerated in spec.md §6 onto a
// stdlib ServeMux using Go's method+pattern routing. No router
// dependency from the example pack is pulled in here: every repo we
// surveyed that reaches for HTTP handling (including the teacher)
// hand-rolls dispatch over net/http rather than importing chi, gorilla,
// or echo as a direct dependency, so this keeps the same idiom.
func NewRouter(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /inbox", InboxHandler(deps))
	mux.Handle("POST /users/{name}/inbox", InboxHandler(deps))

	mux.Handle("GET /objects/articles/{id}", ObjectsArticleHandler(deps))
	mux.Handle("GET /objects/edits/{id}", ObjectsEditHandler(deps))

	mux.Handle("GET /instance", InstanceHandler(deps))
	mux.Handle("GET /instance/articles", InstanceArticlesHandler(deps))
	mux.Handle("GET /users/{name}", UserHandler(deps))

	return mux
}
