package federation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository/gormrepo"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *gormrepo.Repo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Instance{}, &models.Person{}, &models.Article{}, &models.Edit{}, &models.Follow{},
		&models.OutboxEntry{}, &models.ProcessedActivity{},
	))
	return gormrepo.NewForTesting(db)
}

func TestDrainPendingDeliversAndMarksPublished(t *testing.T) {
	var received int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	repo := newTestRepo(t)
	queue := NewQueue(repo, hclog.NewNullLogger())
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "https://a.test/activities/1", "UpdateArticle",
		[]byte(`{"type":"UpdateArticle"}`), "https://a.test/instance", []string{server.URL}))

	_, priv, err := GenerateKeyPair()
	require.NoError(t, err)
	privKey, err := ParsePrivateKey(priv)
	require.NoError(t, err)

	identity := SenderIdentity{APID: "https://a.test/instance", PrivateKey: privKey}
	require.NoError(t, queue.DrainPending(ctx, identity, 10))

	require.Equal(t, 1, received)

	pending, err := repo.ListPendingDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDrainPendingMarksFailedOnClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	repo := newTestRepo(t)
	queue := NewQueue(repo, hclog.NewNullLogger())
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "https://a.test/activities/2", "UpdateArticle",
		[]byte(`{"type":"UpdateArticle"}`), "https://a.test/instance", []string{server.URL}))

	_, priv, err := GenerateKeyPair()
	require.NoError(t, err)
	privKey, err := ParsePrivateKey(priv)
	require.NoError(t, err)

	identity := SenderIdentity{APID: "https://a.test/instance", PrivateKey: privKey}
	require.NoError(t, queue.DrainPending(ctx, identity, 10))

	pending, err := repo.ListPendingDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending, "a 403 is permanent and should not be retried as pending")
}
