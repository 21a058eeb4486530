package gormrepo

import (
	"context"
	"testing"

	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository"
	"github.com/quillmesh/quillmesh/pkg/versionid"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Instance{},
		&models.Person{},
		&models.Article{},
		&models.Edit{},
		&models.Follow{},
	))
	return &Repo{db: db}
}

func seedInstance(t *testing.T, r *Repo, apID string, local bool) *models.Instance {
	t.Helper()
	ctx := context.Background()
	instance := &models.Instance{
		APID:     apID,
		Domain:   "example.test",
		InboxURL: apID + "/inbox",
		Local:    local,
	}
	require.NoError(t, r.CreateInstance(ctx, instance))
	return instance
}

func TestCreateArticleRejectsDuplicateTitle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	instance := seedInstance(t, r, "https://a.test/instance", true)

	first := &models.Article{Title: "Foo", APID: "https://a.test/articles/foo", InstanceID: instance.ID}
	require.NoError(t, r.CreateArticle(ctx, first))

	second := &models.Article{Title: "Foo", APID: "https://a.test/articles/foo-2", InstanceID: instance.ID}
	err := r.CreateArticle(ctx, second)
	require.ErrorIs(t, err, repository.ErrTitleTaken)
}

func TestHeadEditReturnsMostRecent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	instance := seedInstance(t, r, "https://a.test/instance", true)
	person := &models.Person{Username: "alice", APID: "https://a.test/people/alice", InstanceID: instance.ID}
	require.NoError(t, r.CreatePerson(ctx, person))

	article := &models.Article{Title: "Foo", APID: "https://a.test/articles/foo", InstanceID: instance.ID}
	require.NoError(t, r.CreateArticle(ctx, article))

	first := &models.Edit{
		Hash:       versionid.New("a\n"),
		APID:       "https://a.test/edits/1",
		ArticleID:  article.ID,
		CreatorID:  person.ID,
		Diff:       "a\n",
		PreviousID: versionid.Default,
	}
	require.NoError(t, r.AppendEdit(ctx, first))

	second := &models.Edit{
		Hash:       versionid.New("a\nb\n"),
		APID:       "https://a.test/edits/2",
		ArticleID:  article.ID,
		CreatorID:  person.ID,
		Diff:       "a\nb\n",
		PreviousID: first.Hash,
	}
	require.NoError(t, r.AppendEdit(ctx, second))

	head, err := r.HeadEdit(ctx, article.ID)
	require.NoError(t, err)
	require.True(t, head.Hash.Equal(second.Hash))
}

func TestFollowLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	a := seedInstance(t, r, "https://a.test/instance", true)
	b := seedInstance(t, r, "https://b.test/instance", false)

	_, err := r.UpsertFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	follows, err := r.ListFollows(ctx, a.ID)
	require.NoError(t, err)
	require.Empty(t, follows, "follow is not accepted yet")

	require.NoError(t, r.AcceptFollow(ctx, a.ID, b.ID))

	follows, err = r.ListFollows(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, follows, 1)
	require.Equal(t, b.APID, follows[0].APID)

	followers, err := r.ListFollowers(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	require.Equal(t, a.APID, followers[0].APID)
}

func TestGetArticleByAPIDNotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.GetArticleByAPID(context.Background(), "https://missing.test/articles/none")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
