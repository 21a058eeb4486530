// Package articlestore implements the repository of articles and their
// edit chains: head-pointer invariants, chain replay, and the
// fast-forward/rebase/unknown-base merge decision. It depends only on
// internal/repository, never on a concrete database driver, and takes a
// per-article lock around every mutation so that within one article,
// causal order of applied edits equals wall-clock arrival order.
package articlestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillmesh/quillmesh/internal/conflicts"
	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository"
	"github.com/quillmesh/quillmesh/pkg/diffengine"
	"github.com/quillmesh/quillmesh/pkg/versionid"

	"github.com/hashicorp/go-hclog"
)

// ErrUnknownBase is returned when previousVersionID names neither the
// empty-article default nor any known hash in the article's chain.
var ErrUnknownBase = errors.New("articlestore: unknown base version")

// Outcome discriminates the two non-error results AppendEdit can produce;
// an unknown base version is reported as ErrUnknownBase instead.
type Outcome int

const (
	// OutcomeApplied means a new Edit was committed and the article's
	// text was updated.
	OutcomeApplied Outcome = iota
	// OutcomeConflict means the three-way merge could not resolve; a
	// Conflict was recorded and no Edit was appended.
	OutcomeConflict
)

// AppendResult is the outcome of one AppendEdit call.
type AppendResult struct {
	Outcome  Outcome
	Edit     *models.Edit
	Conflict *conflicts.Conflict
}

// Store is the article repository, backed by a Repository and a process-
// wide ConflictRegistry.
type Store struct {
	repo      repository.Repository
	conflicts *conflicts.Registry
	locks     *articleLocks
	logger    hclog.Logger
}

// New constructs a Store.
func New(repo repository.Repository, registry *conflicts.Registry, logger hclog.Logger) *Store {
	return &Store{
		repo:      repo,
		conflicts: registry,
		locks:     newArticleLocks(),
		logger:    logger.Named("articlestore"),
	}
}

// CreateArticle atomically inserts a new Article with an empty text, then
// appends the first Edit (previous = versionid.Default) and updates the
// materialized text. Fails with repository.ErrTitleTaken if the title
// collides within the owning instance.
func (s *Store) CreateArticle(ctx context.Context, apIDFunc func(articleID uint) string, title, initialText, summary string, instanceID, creatorID uint) (*models.Article, error) {
	article := &models.Article{
		Title:      title,
		Text:       "",
		InstanceID: instanceID,
		Local:      true,
	}
	// The ap_id depends on the assigned local id, so the article is
	// created first with a placeholder and then patched. Callers that
	// already know their ap_id scheme pass a constant-returning apIDFunc.
	article.APID = apIDFunc(0)
	if err := s.repo.CreateArticle(ctx, article); err != nil {
		return nil, err
	}
	if realID := apIDFunc(article.ID); realID != article.APID {
		article.APID = realID
		if err := s.repo.UpdateArticleText(ctx, article.ID, article.Text); err != nil {
			return nil, err
		}
	}

	patch := diffengine.MakePatch("", initialText)
	edit := &models.Edit{
		Hash:       versionid.New(patch),
		ArticleID:  article.ID,
		CreatorID:  creatorID,
		Diff:       patch,
		Summary:    summary,
		PreviousID: versionid.Default,
		Created:    time.Now().UTC(),
	}
	if err := s.repo.AppendEdit(ctx, edit); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateArticleText(ctx, article.ID, initialText); err != nil {
		return nil, err
	}
	article.Text = initialText
	return article, nil
}

// AppendEdit implements the fast-forward / rebase / unknown-base state
// machine. The caller holds no lock; AppendEdit takes the per-article
// lock itself for the duration of head read, patch build, and append.
func (s *Store) AppendEdit(ctx context.Context, articleID uint, newText, summary string, previousVersionID versionid.VersionId, creatorID uint, resolveConflictID *versionid.VersionId) (*AppendResult, error) {
	var result *AppendResult
	err := s.locks.withArticleLock(articleID, func() error {
		r, err := s.appendEditLocked(ctx, articleID, newText, summary, previousVersionID, creatorID, resolveConflictID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (s *Store) appendEditLocked(ctx context.Context, articleID uint, newText, summary string, previousVersionID versionid.VersionId, creatorID uint, resolveConflictID *versionid.VersionId) (*AppendResult, error) {
	head, err := s.repo.HeadEdit(ctx, articleID)
	headIsDefault := errors.Is(err, repository.ErrNotFound)
	if err != nil && !headIsDefault {
		return nil, fmt.Errorf("articlestore: reading head: %w", err)
	}

	var headHash versionid.VersionId
	var headText string
	if headIsDefault {
		headHash = versionid.Default
		headText = ""
	} else {
		headHash = head.Hash
		article, err := s.repo.GetArticleByID(ctx, articleID)
		if err != nil {
			return nil, fmt.Errorf("articlestore: reading article: %w", err)
		}
		headText = article.Text
	}

	if previousVersionID == headHash {
		return s.fastForward(ctx, articleID, newText, summary, headHash, headText, creatorID, resolveConflictID)
	}

	ancestorText, ok, err := s.replayTo(ctx, articleID, previousVersionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownBase
	}

	merged, conflict := diffengine.ThreeWayMerge(ancestorText, newText, headText)
	if conflict != nil {
		c := conflicts.Conflict{
			ID:                versionid.New(conflict.Text),
			ArticleID:         articleID,
			PreviousVersionID: headHash,
			ThreeWayMerge:     conflict.Text,
			CreatorID:         creatorID,
		}
		s.conflicts.Insert(c)
		return &AppendResult{Outcome: OutcomeConflict, Conflict: &c}, nil
	}

	return s.fastForward(ctx, articleID, merged, summary, headHash, headText, creatorID, resolveConflictID)
}

func (s *Store) fastForward(ctx context.Context, articleID uint, newText, summary string, headHash versionid.VersionId, headText string, creatorID uint, resolveConflictID *versionid.VersionId) (*AppendResult, error) {
	patch := diffengine.MakePatch(headText, newText)
	edit := &models.Edit{
		Hash:       versionid.New(patch),
		ArticleID:  articleID,
		CreatorID:  creatorID,
		Diff:       patch,
		Summary:    summary,
		PreviousID: headHash,
		Created:    time.Now().UTC(),
	}
	if err := s.repo.AppendEdit(ctx, edit); err != nil {
		return nil, fmt.Errorf("articlestore: appending edit: %w", err)
	}
	if err := s.repo.UpdateArticleText(ctx, articleID, newText); err != nil {
		return nil, fmt.Errorf("articlestore: updating text: %w", err)
	}
	if resolveConflictID != nil {
		s.conflicts.Delete(*resolveConflictID)
	}
	// The head just advanced past headHash. Any other outstanding
	// conflict still recorded against that now-superseded base is stale
	// too, even if it isn't the one resolveConflictID names: its
	// previous_version_id no longer names the article's head, so it can
	// never be resolved by a fast-forward again.
	for _, c := range s.conflicts.GetByArticle(articleID) {
		if c.PreviousVersionID == headHash {
			s.conflicts.Delete(c.ID)
		}
	}
	return &AppendResult{Outcome: OutcomeApplied, Edit: edit}, nil
}

// replayTo reconstructs the article text as of and including the edit
// whose hash is target. Returns ok=false if target names neither
// versionid.Default on an empty article nor any known hash in the chain.
func (s *Store) replayTo(ctx context.Context, articleID uint, target versionid.VersionId) (string, bool, error) {
	edits, err := s.repo.ListEdits(ctx, articleID)
	if err != nil {
		return "", false, fmt.Errorf("articlestore: listing edits: %w", err)
	}

	if target == versionid.Default && len(edits) == 0 {
		return "", true, nil
	}

	text := ""
	for _, edit := range edits {
		applied, err := diffengine.Apply(text, edit.Diff)
		if err != nil {
			return "", false, fmt.Errorf("articlestore: replaying edit %s: %w", edit.Hash, err)
		}
		text = applied
		if edit.Hash.Equal(target) {
			return text, true, nil
		}
	}
	return "", false, nil
}

// ForkArticle creates a new Article on targetInstanceID with the same
// title and current text as the source, copying the entire edit chain in
// order. Hash and diff values are preserved; ap_ids are fresh, minted by
// apIDFunc for the article and each copied edit in turn.
func (s *Store) ForkArticle(ctx context.Context, sourceArticleID, targetInstanceID, creatorID uint, articleAPID func(articleID uint) string, editAPID func(editID uint) string) (*models.Article, error) {
	source, err := s.repo.GetArticleByID(ctx, sourceArticleID)
	if err != nil {
		return nil, fmt.Errorf("articlestore: loading source article: %w", err)
	}
	edits, err := s.repo.ListEdits(ctx, sourceArticleID)
	if err != nil {
		return nil, fmt.Errorf("articlestore: listing source edits: %w", err)
	}

	forked := &models.Article{
		Title:      source.Title,
		Text:       source.Text,
		InstanceID: targetInstanceID,
		Local:      false,
	}
	forked.APID = articleAPID(0)
	if err := s.repo.CreateArticle(ctx, forked); err != nil {
		return nil, fmt.Errorf("articlestore: creating forked article: %w", err)
	}
	if realID := articleAPID(forked.ID); realID != forked.APID {
		forked.APID = realID
	}

	for _, e := range edits {
		copyEdit := &models.Edit{
			Hash:       e.Hash,
			ArticleID:  forked.ID,
			CreatorID:  creatorID,
			Diff:       e.Diff,
			Summary:    e.Summary,
			PreviousID: e.PreviousID,
			Created:    e.Created,
		}
		copyEdit.APID = editAPID(0)
		if err := s.repo.AppendEdit(ctx, copyEdit); err != nil {
			return nil, fmt.Errorf("articlestore: copying edit: %w", err)
		}
		if realID := editAPID(copyEdit.ID); realID != copyEdit.APID {
			copyEdit.APID = realID
		}
	}

	if err := s.repo.UpdateArticleText(ctx, forked.ID, source.Text); err != nil {
		return nil, fmt.Errorf("articlestore: finalizing forked article text: %w", err)
	}
	forked.Text = source.Text
	return forked, nil
}

// GetArticle looks an article up by local id.
func (s *Store) GetArticle(ctx context.Context, id uint) (*models.Article, error) {
	return s.repo.GetArticleByID(ctx, id)
}

// GetArticleByAPID looks an article up by its federation id.
func (s *Store) GetArticleByAPID(ctx context.Context, apID string) (*models.Article, error) {
	return s.repo.GetArticleByAPID(ctx, apID)
}

// GetArticleByTitle looks an article up within one instance by title.
func (s *Store) GetArticleByTitle(ctx context.Context, instanceID uint, title string) (*models.Article, error) {
	return s.repo.GetArticleByTitle(ctx, instanceID, title)
}

// ListEdits returns an article's chain in causal order.
func (s *Store) ListEdits(ctx context.Context, articleID uint) ([]models.Edit, error) {
	return s.repo.ListEdits(ctx, articleID)
}

// ListArticles returns every article owned by instanceID.
func (s *Store) ListArticles(ctx context.Context, instanceID uint, onlyLocal bool) ([]models.Article, error) {
	return s.repo.ListArticles(ctx, instanceID, onlyLocal)
}

// TextAtVersion reconstructs an article's text as of and including the
// edit named by version, for callers (the inbox dispatcher) that must
// apply a remote diff against the exact ancestor the sender built it
// from rather than the current head. ok is false if version names
// neither versionid.Default on an empty article nor any known hash in
// the chain.
func (s *Store) TextAtVersion(ctx context.Context, articleID uint, version versionid.VersionId) (string, bool, error) {
	return s.replayTo(ctx, articleID, version)
}
