// Package editcontroller orchestrates create_article, edit_article,
// fork_article, and resolve_conflict: the transactional heart of the
// core. It is a thin layer over articlestore's merge state machine that
// adds outbound federation publishing on a clean commit.
package editcontroller

import (
	"context"
	"fmt"

	"github.com/quillmesh/quillmesh/internal/articlestore"
	"github.com/quillmesh/quillmesh/internal/conflicts"
	"github.com/quillmesh/quillmesh/internal/federation"
	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/pkg/versionid"

	"github.com/hashicorp/go-hclog"
)

// Controller is the EditController described in spec.md §4.5.
type Controller struct {
	store     *articlestore.Store
	conflicts *conflicts.Registry
	publisher federation.Publisher
	logger    hclog.Logger
}

// New constructs a Controller. publisher may be nil, in which case
// successful edits are committed but never federated (used by tests).
// Inbound processing shares the server's controller and passes
// publish=false to EditArticle instead, so it does not re-publish what
// it just received.
func New(store *articlestore.Store, registry *conflicts.Registry, publisher federation.Publisher, logger hclog.Logger) *Controller {
	return &Controller{
		store:     store,
		conflicts: registry,
		publisher: publisher,
		logger:    logger.Named("editcontroller"),
	}
}

// CreateArticle commits a brand-new article and its first edit.
func (c *Controller) CreateArticle(ctx context.Context, apIDFunc func(articleID uint) string, title, initialText, summary string, instanceID, creatorID uint) (*models.Article, error) {
	return c.store.CreateArticle(ctx, apIDFunc, title, initialText, summary, instanceID, creatorID)
}

// EditArticle is the central operation: it runs the fast-forward/rebase/
// unknown-base state machine and, on a clean commit, publishes an
// outbound UpdateArticle activity to the owning instance's followers.
//
// publish controls whether this call emits federation traffic at all;
// inbound UpdateArticle processing passes false, since re-announcing an
// activity the instance just received would loop.
func (c *Controller) EditArticle(ctx context.Context, articleID uint, newText, summary string, previousVersionID versionid.VersionId, creatorID uint, resolveConflictID *versionid.VersionId, publish bool) (*articlestore.AppendResult, error) {
	result, err := c.store.AppendEdit(ctx, articleID, newText, summary, previousVersionID, creatorID, resolveConflictID)
	if err != nil {
		return nil, err
	}

	if result.Outcome != articlestore.OutcomeApplied || !publish || c.publisher == nil {
		return result, nil
	}

	article, err := c.store.GetArticle(ctx, articleID)
	if err != nil {
		return result, fmt.Errorf("editcontroller: loading article for publish: %w", err)
	}
	if err := c.publisher.PublishUpdateArticle(ctx, result.Edit, article); err != nil {
		c.logger.Warn("failed to publish UpdateArticle", "article_id", articleID, "error", err)
	}
	return result, nil
}

// ForkArticle replicates an article's full chain onto another instance.
func (c *Controller) ForkArticle(ctx context.Context, sourceArticleID, targetInstanceID, creatorID uint, articleAPID func(uint) string, editAPID func(uint) string) (*models.Article, error) {
	return c.store.ForkArticle(ctx, sourceArticleID, targetInstanceID, creatorID, articleAPID, editAPID)
}

// ResolveConflict is EditArticle with a conflict id attached: on success
// the named Conflict is deleted, but the call is never required to
// resolve the conflict it names (the registry is an aid, not a lock).
func (c *Controller) ResolveConflict(ctx context.Context, articleID uint, resolvedText, summary string, previousVersionID versionid.VersionId, creatorID uint, conflictID versionid.VersionId, publish bool) (*articlestore.AppendResult, error) {
	return c.EditArticle(ctx, articleID, resolvedText, summary, previousVersionID, creatorID, &conflictID, publish)
}

// ConflictsForUser returns every conflict authored by personID.
func (c *Controller) ConflictsForUser(personID uint) []conflicts.Conflict {
	return c.conflicts.GetByUser(personID)
}
