package articlestore

import (
	"context"
	"fmt"
	"testing"

	"github.com/quillmesh/quillmesh/internal/conflicts"
	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository/gormrepo"
	"github.com/quillmesh/quillmesh/pkg/versionid"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, uint, uint) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Instance{}, &models.Person{}, &models.Article{}, &models.Edit{}, &models.Follow{},
	))

	repo := gormrepo.NewForTesting(db)
	ctx := context.Background()

	instance := &models.Instance{APID: "https://a.test/instance", Domain: "a.test", InboxURL: "https://a.test/inbox", Local: true}
	require.NoError(t, repo.CreateInstance(ctx, instance))

	person := &models.Person{Username: "alice", APID: "https://a.test/people/alice", InstanceID: instance.ID}
	require.NoError(t, repo.CreatePerson(ctx, person))

	store := New(repo, conflicts.NewRegistry(), hclog.NewNullLogger())
	return store, instance.ID, person.ID
}

func articleAPID(base string) func(uint) string {
	return func(id uint) string { return fmt.Sprintf("%s/%d", base, id) }
}

func TestCreateArticleBuildsFirstEdit(t *testing.T) {
	store, instanceID, personID := newTestStore(t)
	ctx := context.Background()

	article, err := store.CreateArticle(ctx, articleAPID("https://a.test/articles/foo"), "Foo", "a\n", "initial", instanceID, personID)
	require.NoError(t, err)
	require.Equal(t, "a\n", article.Text)

	edits, err := store.ListEdits(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	require.True(t, edits[0].PreviousID.Equal(versionid.Default))
}

func TestCreateArticleRejectsDuplicateTitle(t *testing.T) {
	store, instanceID, personID := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateArticle(ctx, articleAPID("https://a.test/articles/foo"), "Foo", "a\n", "", instanceID, personID)
	require.NoError(t, err)

	_, err = store.CreateArticle(ctx, articleAPID("https://a.test/articles/foo2"), "Foo", "a\n", "", instanceID, personID)
	require.Error(t, err)
}

// TestConcurrentEditsFromSameBaseConflict mirrors the Foo scenario: a
// fast-forward edit commits, a second edit from the same stale base
// produces a Conflict without mutating article text.
func TestConcurrentEditsFromSameBaseConflict(t *testing.T) {
	store, instanceID, personID := newTestStore(t)
	ctx := context.Background()

	article, err := store.CreateArticle(ctx, articleAPID("https://a.test/articles/foo"), "Foo", "a\n", "", instanceID, personID)
	require.NoError(t, err)

	edits, err := store.ListEdits(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	head := edits[0].Hash

	first, err := store.AppendEdit(ctx, article.ID, "a\nb\n", "add b", head, personID, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, first.Outcome)

	second, err := store.AppendEdit(ctx, article.ID, "a\nc\n", "add c", head, personID, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeConflict, second.Outcome)
	require.Contains(t, second.Conflict.ThreeWayMerge, "b\n")
	require.Contains(t, second.Conflict.ThreeWayMerge, "c\n")

	final, err := store.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", final.Text)
}

// TestStaleConflictDroppedWhenHeadAdvancesByOtherMeans covers spec.md
// §3's Conflict lifecycle: a conflict recorded against a given head is
// destroyed once that head is superseded by any edit, not only by a
// caller explicitly resolving that exact conflict.
func TestStaleConflictDroppedWhenHeadAdvancesByOtherMeans(t *testing.T) {
	store, instanceID, personID := newTestStore(t)
	ctx := context.Background()

	article, err := store.CreateArticle(ctx, articleAPID("https://a.test/articles/foo"), "Foo", "a\n", "", instanceID, personID)
	require.NoError(t, err)

	edits, err := store.ListEdits(ctx, article.ID)
	require.NoError(t, err)
	head := edits[0].Hash

	first, err := store.AppendEdit(ctx, article.ID, "a\nb\n", "add b", head, personID, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, first.Outcome)

	second, err := store.AppendEdit(ctx, article.ID, "a\nc\n", "add c", head, personID, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeConflict, second.Outcome)
	require.Len(t, store.conflicts.GetByArticle(article.ID), 1)

	// A third, unrelated edit lands on the new head "a\nb\n" without
	// resolving the outstanding conflict at all.
	third, err := store.AppendEdit(ctx, article.ID, "a\nb\nd\n", "add d", first.Edit.Hash, personID, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, third.Outcome)

	require.Empty(t, store.conflicts.GetByArticle(article.ID))
}

func TestAppendEditUnknownBase(t *testing.T) {
	store, instanceID, personID := newTestStore(t)
	ctx := context.Background()

	article, err := store.CreateArticle(ctx, articleAPID("https://a.test/articles/foo"), "Foo", "a\n", "", instanceID, personID)
	require.NoError(t, err)

	bogus := versionid.New("not a real base")
	_, err = store.AppendEdit(ctx, article.ID, "a\nz\n", "", bogus, personID, nil)
	require.ErrorIs(t, err, ErrUnknownBase)
}

func TestForkArticleCopiesChain(t *testing.T) {
	store, instanceID, personID := newTestStore(t)
	ctx := context.Background()

	article, err := store.CreateArticle(ctx, articleAPID("https://a.test/articles/foo"), "Foo", "a\n", "", instanceID, personID)
	require.NoError(t, err)
	edits, err := store.ListEdits(ctx, article.ID)
	require.NoError(t, err)
	head := edits[0].Hash

	_, err = store.AppendEdit(ctx, article.ID, "a\nb\n", "add b", head, personID, nil)
	require.NoError(t, err)

	fork, err := store.ForkArticle(ctx, article.ID, instanceID, personID, articleAPID("https://b.test/articles/foo"), func(id uint) string {
		return fmt.Sprintf("https://b.test/edits/%d", id)
	})
	require.NoError(t, err)
	require.Equal(t, "Foo", fork.Title)
	require.Equal(t, "a\nb\n", fork.Text)

	forkEdits, err := store.ListEdits(ctx, fork.ID)
	require.NoError(t, err)
	require.Len(t, forkEdits, 2)

	sourceEdits, err := store.ListEdits(ctx, article.ID)
	require.NoError(t, err)
	for i := range forkEdits {
		require.True(t, forkEdits[i].Hash.Equal(sourceEdits[i].Hash))
		require.Equal(t, sourceEdits[i].Diff, forkEdits[i].Diff)
	}
}
