package conflicts

import (
	"testing"

	"github.com/quillmesh/quillmesh/pkg/versionid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	r := NewRegistry()
	id := versionid.New("conflict marker text")
	r.Insert(Conflict{ID: id, ArticleID: 1, CreatorID: 7})

	c, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, uint(1), c.ArticleID)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestGetByUser(t *testing.T) {
	r := NewRegistry()
	r.Insert(Conflict{ID: versionid.New("a"), CreatorID: 1})
	r.Insert(Conflict{ID: versionid.New("b"), CreatorID: 1})
	r.Insert(Conflict{ID: versionid.New("c"), CreatorID: 2})

	mine := r.GetByUser(1)
	assert.Len(t, mine, 2)
}

func TestDeleteIsIdempotent(t *testing.T) {
	r := NewRegistry()
	id := versionid.New("x")
	r.Insert(Conflict{ID: id})
	r.Delete(id)
	r.Delete(id)

	_, ok := r.Get(id)
	assert.False(t, ok)
}

func TestGetByArticle(t *testing.T) {
	r := NewRegistry()
	r.Insert(Conflict{ID: versionid.New("a"), ArticleID: 5})
	r.Insert(Conflict{ID: versionid.New("b"), ArticleID: 6})

	forFive := r.GetByArticle(5)
	require.Len(t, forFive, 1)
	assert.Equal(t, uint(5), forFive[0].ArticleID)
}
