package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quillmesh/quillmesh/internal/federation"
	"github.com/quillmesh/quillmesh/internal/models"

	"github.com/stretchr/testify/require"
)

func TestObjectsArticleHandlerServesApubArticle(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	author := &models.Person{Username: "alice", APID: "https://a.test/users/alice", InstanceID: h.local.ID, Local: true}
	require.NoError(t, h.repo.CreatePerson(ctx, author))

	article, err := h.deps.Store.CreateArticle(ctx, func(uint) string { return "https://a.test/objects/articles/1" }, "Foo", "hello\n", "init", h.local.ID, author.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/objects/articles/1", nil)
	rec := httptest.NewRecorder()
	ObjectsArticleHandler(h.deps).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/activity+json", rec.Header().Get("Content-Type"))

	var got federation.ApubArticle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, article.APID, got.ID)
	require.Equal(t, "hello\n", got.Content)
}

func TestObjectsArticleHandlerNotFound(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/objects/articles/missing", nil)
	rec := httptest.NewRecorder()
	ObjectsArticleHandler(h.deps).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstanceHandlerServesLocalInstance(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/instance", nil)
	rec := httptest.NewRecorder()
	InstanceHandler(h.deps).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got federation.ApubInstance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, h.local.APID, got.ID)
}

func TestUserHandlerServesLocalPerson(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	person := &models.Person{Username: "alice", APID: "https://a.test/users/alice", InstanceID: h.local.ID, Local: true}
	require.NoError(t, h.repo.CreatePerson(ctx, person))

	req := httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	rec := httptest.NewRecorder()
	UserHandler(h.deps).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got federation.ApubPerson
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, person.APID, got.ID)
}

func TestInstanceArticlesHandlerListsLocalArticles(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	author := &models.Person{Username: "alice", APID: "https://a.test/users/alice", InstanceID: h.local.ID, Local: true}
	require.NoError(t, h.repo.CreatePerson(ctx, author))
	_, err := h.deps.Store.CreateArticle(ctx, func(uint) string { return "https://a.test/objects/articles/1" }, "Foo", "hello\n", "init", h.local.ID, author.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/instance/articles", nil)
	rec := httptest.NewRecorder()
	InstanceArticlesHandler(h.deps).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var collection instanceArticlesCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &collection))
	require.Equal(t, 1, collection.TotalItems)
	require.Equal(t, []string{"https://a.test/objects/articles/1"}, collection.OrderedItems)
}
