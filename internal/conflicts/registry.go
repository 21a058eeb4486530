package conflicts

import (
	"sync"
	"time"

	"github.com/quillmesh/quillmesh/pkg/versionid"
)

// Registry is the process-wide map of VersionId -> Conflict, keyed by the
// conflict's own id (itself the VersionId of the conflict-marker text),
// guarded by a single RWMutex the way the teacher guards its
// current-instance singleton.
type Registry struct {
	mu        sync.RWMutex
	conflicts map[versionid.VersionId]Conflict
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conflicts: make(map[versionid.VersionId]Conflict)}
}

// Insert records a new conflict, stamping CreatedAt if the caller left it
// zero.
func (r *Registry) Insert(c Conflict) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts[c.ID] = c
}

// Get returns the conflict with the given id, if present.
func (r *Registry) Get(id versionid.VersionId) (Conflict, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conflicts[id]
	return c, ok
}

// GetByUser returns every conflict authored by personID, in no
// particular order.
func (r *Registry) GetByUser(personID uint) []Conflict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Conflict
	for _, c := range r.conflicts {
		if c.CreatorID == personID {
			result = append(result, c)
		}
	}
	return result
}

// GetByArticle returns every conflict outstanding on articleID, in no
// particular order. Used by the articlestore to drop conflicts whose
// base the article's head has advanced past through other means.
func (r *Registry) GetByArticle(articleID uint) []Conflict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Conflict
	for _, c := range r.conflicts {
		if c.ArticleID == articleID {
			result = append(result, c)
		}
	}
	return result
}

// Delete removes a conflict. It is not an error to delete an id that
// isn't present: the registry is an aid, never a lock, and callers may
// race harmlessly with each other.
func (r *Registry) Delete(id versionid.VersionId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conflicts, id)
}
