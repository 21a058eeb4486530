// Package api implements the HTTP surface described in spec.md §6: the
// federation inbox, the ActivityPub object endpoints, and the instance
// discovery endpoints. Handler style (plain http.Handler funcs closed
// over a dependency struct, manual path parsing, JSON decode/encode with
// http.Error for failures) follows the teacher's internal/api/v2
// handlers.
package api

import (
	"github.com/quillmesh/quillmesh/internal/articlestore"
	"github.com/quillmesh/quillmesh/internal/conflicts"
	"github.com/quillmesh/quillmesh/internal/editcontroller"
	"github.com/quillmesh/quillmesh/internal/federation"
	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository"

	"github.com/hashicorp/go-hclog"
)

// Deps are the collaborators every handler in this package is built
// against. It is the HTTP layer's analog of internal/server.Server,
// scoped to exactly what §6's endpoints need.
type Deps struct {
	// BaseURL is this instance's externally-reachable origin, used to
	// reconstruct a request's full ap_id from its path when serving
	// object endpoints (ap_ids are minted as BaseURL + path at creation
	// time).
	BaseURL string

	Repo       repository.Repository
	Store      *articlestore.Store
	Controller *editcontroller.Controller
	Conflicts  *conflicts.Registry
	Queue      *federation.Queue
	Logger     hclog.Logger

	// DeniedDomains lists instance domains whose inbound Follow is
	// rejected rather than auto-accepted, per spec.md §4.7.
	DeniedDomains []string

	// LocalInstance returns this process's own Instance row, used to
	// answer GET /instance and to sign outbound Accept replies.
	LocalInstance func() *models.Instance

	// Identity returns the key material used to sign outbound Accept
	// activities sent from the inbox.
	Identity func() (federation.SenderIdentity, error)
}
