// Package conflicts holds unresolved three-way merges awaiting human
// input. Unlike the core's other entities, conflicts are explicitly not
// database-backed: they are soft-durable, and may be lost on process
// restart without violating any invariant, since the originator can
// simply resubmit the edit.
package conflicts

import (
	"time"

	"github.com/quillmesh/quillmesh/pkg/versionid"
)

// Conflict records a three-way merge that produced marker-annotated text
// instead of a clean result.
type Conflict struct {
	ID                versionid.VersionId
	ArticleID         uint
	PreviousVersionID versionid.VersionId
	ThreeWayMerge     string
	CreatorID         uint
	CreatedAt         time.Time
}
