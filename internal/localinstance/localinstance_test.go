package localinstance

import (
	"context"
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
	require.NoError(t, db.AutoMigrate(&models.Instance{}, &models.Person{}, &models.Article{}, &models.Edit{}, &models.Follow{}))
	return gormrepo.NewForTesting(db)
}

func TestInitializeCreatesInstanceOnFirstRun(t *testing.T) {
	t.Cleanup(ResetForTesting)
	repo := newTestRepo(t)
	require.NoError(t, Initialize(context.Background(), repo, "https://a.test", "a.test", hclog.NewNullLogger()))

	instance := Current()
	require.NotNil(t, instance)
	require.Equal(t, "https://a.test/instance", instance.APID)
	require.NotEmpty(t, instance.PrivateKey)

	identity, err := Identity()
	require.NoError(t, err)
	require.Equal(t, instance.APID, identity.APID)
}

func TestInitializeIsIdempotent(t *testing.T) {
	t.Cleanup(ResetForTesting)
	repo := newTestRepo(t)
	require.NoError(t, Initialize(context.Background(), repo, "https://a.test", "a.test", hclog.NewNullLogger()))
	first := Current().APID

	require.NoError(t, Initialize(context.Background(), repo, "https://a.test", "a.test", hclog.NewNullLogger()))
	require.Equal(t, first, Current().APID)
}
