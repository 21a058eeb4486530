// Package repository declares the storage contract the core depends on.
// The core never imports gorm directly; it is wired against this
// interface so EditController, ArticleStore, and the federation layer can
// be tested against an in-memory fake without a database.
package repository

import (
	"context"

	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/pkg/versionid"
)

// Repository is the persistence boundary for the core. Every method is
// safe for concurrent use; callers needing article-level serialization
// take the lock in internal/articlestore before calling here.
type Repository interface {
	CreateArticle(ctx context.Context, article *models.Article) error
	GetArticleByID(ctx context.Context, id uint) (*models.Article, error)
	GetArticleByAPID(ctx context.Context, apID string) (*models.Article, error)
	GetArticleByTitle(ctx context.Context, instanceID uint, title string) (*models.Article, error)
	ListArticles(ctx context.Context, instanceID uint, onlyLocal bool) ([]models.Article, error)
	UpdateArticleText(ctx context.Context, articleID uint, text string) error
	DeleteArticle(ctx context.Context, articleID uint) error

	AppendEdit(ctx context.Context, edit *models.Edit) error
	GetEditByHash(ctx context.Context, articleID uint, hash versionid.VersionId) (*models.Edit, error)
	GetEditByAPID(ctx context.Context, apID string) (*models.Edit, error)
	ListEdits(ctx context.Context, articleID uint) ([]models.Edit, error)
	HeadEdit(ctx context.Context, articleID uint) (*models.Edit, error)

	CreateInstance(ctx context.Context, instance *models.Instance) error
	GetLocalInstance(ctx context.Context) (*models.Instance, error)
	GetInstanceByAPID(ctx context.Context, apID string) (*models.Instance, error)
	TouchInstanceRefresh(ctx context.Context, instanceID uint) error

	UpsertFollow(ctx context.Context, followerID, followeeID uint) (*models.Follow, error)
	AcceptFollow(ctx context.Context, followerID, followeeID uint) error
	ListFollowers(ctx context.Context, instanceID uint) ([]models.Instance, error)
	ListFollows(ctx context.Context, instanceID uint) ([]models.Instance, error)

	CreatePerson(ctx context.Context, person *models.Person) error
	GetPersonByAPID(ctx context.Context, apID string) (*models.Person, error)
	GetLocalPersonByUsername(ctx context.Context, instanceID uint, username string) (*models.Person, error)

	EnqueueDelivery(ctx context.Context, entry *models.OutboxEntry) error
	ListPendingDeliveries(ctx context.Context, limit int) ([]models.OutboxEntry, error)
	MarkDeliveryPublished(ctx context.Context, id uint) error
	MarkDeliveryFailed(ctx context.Context, id uint, deliveryErr error) error

	MarkActivityProcessed(ctx context.Context, activityID string) error
	IsActivityProcessed(ctx context.Context, activityID string) (bool, error)
}

// ErrNotFound is returned by lookup methods when no matching row exists.
// Implementations translate their own not-found sentinels (gorm's
// ErrRecordNotFound, for example) into this one so the core never needs
// to import a storage driver's error package.
var ErrNotFound = repositoryError("repository: not found")

// ErrTitleTaken is returned by CreateArticle when (title, instance_id)
// already exists.
var ErrTitleTaken = repositoryError("repository: title already taken for this instance")

type repositoryError string

func (e repositoryError) Error() string { return string(e) }
