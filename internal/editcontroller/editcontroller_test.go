package editcontroller

import (
	"context"
	"fmt"
	"testing"

	"github.com/quillmesh/quillmesh/internal/articlestore"
	"github.com/quillmesh/quillmesh/internal/conflicts"
	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository/gormrepo"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakePublisher struct {
	calls int
}

func (f *fakePublisher) PublishUpdateArticle(ctx context.Context, edit *models.Edit, article *models.Article) error {
	f.calls++
	return nil
}

func newTestController(t *testing.T, pub *fakePublisher) (*Controller, uint, uint) {
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

	registry := conflicts.NewRegistry()
	store := articlestore.New(repo, registry, hclog.NewNullLogger())

	var controller *Controller
	if pub != nil {
		controller = New(store, registry, pub, hclog.NewNullLogger())
	} else {
		controller = New(store, registry, nil, hclog.NewNullLogger())
	}
	return controller, instance.ID, person.ID
}

func apIDFn(base string) func(uint) string {
	return func(id uint) string { return fmt.Sprintf("%s/%d", base, id) }
}

func TestEditArticlePublishesOnFastForward(t *testing.T) {
	pub := &fakePublisher{}
	controller, instanceID, personID := newTestController(t, pub)
	ctx := context.Background()

	article, err := controller.CreateArticle(ctx, apIDFn("https://a.test/articles/foo"), "Foo", "a\n", "", instanceID, personID)
	require.NoError(t, err)

	edits, err := controller.store.ListEdits(ctx, article.ID)
	require.NoError(t, err)
	head := edits[0].Hash

	result, err := controller.EditArticle(ctx, article.ID, "a\nb\n", "add b", head, personID, nil, true)
	require.NoError(t, err)
	require.Equal(t, articlestore.OutcomeApplied, result.Outcome)
	require.Equal(t, 1, pub.calls)
}

func TestEditArticleDoesNotPublishWhenDisabled(t *testing.T) {
	pub := &fakePublisher{}
	controller, instanceID, personID := newTestController(t, pub)
	ctx := context.Background()

	article, err := controller.CreateArticle(ctx, apIDFn("https://a.test/articles/foo"), "Foo", "a\n", "", instanceID, personID)
	require.NoError(t, err)
	edits, err := controller.store.ListEdits(ctx, article.ID)
	require.NoError(t, err)

	_, err = controller.EditArticle(ctx, article.ID, "a\nb\n", "", edits[0].Hash, personID, nil, false)
	require.NoError(t, err)
	require.Equal(t, 0, pub.calls)
}

func TestEditArticleConflictDoesNotPublish(t *testing.T) {
	pub := &fakePublisher{}
	controller, instanceID, personID := newTestController(t, pub)
	ctx := context.Background()

	article, err := controller.CreateArticle(ctx, apIDFn("https://a.test/articles/foo"), "Foo", "a\n", "", instanceID, personID)
	require.NoError(t, err)
	edits, err := controller.store.ListEdits(ctx, article.ID)
	require.NoError(t, err)
	head := edits[0].Hash

	_, err = controller.EditArticle(ctx, article.ID, "a\nb\n", "", head, personID, nil, true)
	require.NoError(t, err)

	result, err := controller.EditArticle(ctx, article.ID, "a\nc\n", "", head, personID, nil, true)
	require.NoError(t, err)
	require.Equal(t, articlestore.OutcomeConflict, result.Outcome)
	require.Equal(t, 1, pub.calls, "only the fast-forward edit should have published")
}

func TestResolveConflictDeletesConflict(t *testing.T) {
	controller, instanceID, personID := newTestController(t, nil)
	ctx := context.Background()

	article, err := controller.CreateArticle(ctx, apIDFn("https://a.test/articles/foo"), "Foo", "a\n", "", instanceID, personID)
	require.NoError(t, err)
	edits, err := controller.store.ListEdits(ctx, article.ID)
	require.NoError(t, err)
	head := edits[0].Hash

	_, err = controller.EditArticle(ctx, article.ID, "a\nb\n", "", head, personID, nil, false)
	require.NoError(t, err)

	result, err := controller.EditArticle(ctx, article.ID, "a\nc\n", "", head, personID, nil, false)
	require.NoError(t, err)
	require.Equal(t, articlestore.OutcomeConflict, result.Outcome)

	_, ok := controller.conflicts.Get(result.Conflict.ID)
	require.True(t, ok)

	newHead, err := controller.store.ListEdits(ctx, article.ID)
	require.NoError(t, err)
	currentHead := newHead[len(newHead)-1].Hash

	resolved, err := controller.ResolveConflict(ctx, article.ID, "a\nb\nc\n", "manual merge", currentHead, personID, result.Conflict.ID, false)
	require.NoError(t, err)
	require.Equal(t, articlestore.OutcomeApplied, resolved.Outcome)

	_, ok = controller.conflicts.Get(result.Conflict.ID)
	require.False(t, ok)
}
