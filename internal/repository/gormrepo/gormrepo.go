// Package gormrepo implements internal/repository.Repository on top of
// GORM, supporting both PostgreSQL and SQLite the way the teacher's
// internal/db package picks a dialector from a driver string.
package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository"
	"github.com/quillmesh/quillmesh/pkg/versionid"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config selects and parameterizes the database connection.
type Config struct {
	Driver string // "postgres" or "sqlite"

	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	Path string // sqlite file path
}

// Repo is the GORM-backed Repository implementation.
type Repo struct {
	db *gorm.DB
}

var _ repository.Repository = (*Repo)(nil)

// Open connects to the configured database and runs AutoMigrate for the
// core models.
func Open(cfg Config, logger hclog.Logger) (*Repo, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
			cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port)
		dialector = postgres.Open(dsn)
	case "sqlite":
		if cfg.Path != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("gormrepo: creating database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("gormrepo: unsupported driver %q (supported: postgres, sqlite)", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newHclogAdapter(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("gormrepo: connecting: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Instance{},
		&models.Person{},
		&models.Article{},
		&models.Edit{},
		&models.Follow{},
		&models.OutboxEntry{},
		&models.ProcessedActivity{},
	); err != nil {
		return nil, fmt.Errorf("gormrepo: migrating: %w", err)
	}

	return &Repo{db: db}, nil
}

// NewForTesting wraps an already-open, already-migrated *gorm.DB. Tests
// that need a Repository but not Open's dialector selection or logging
// adapter construct one directly against an in-memory SQLite handle.
func NewForTesting(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// DB exposes the underlying connection for components that need
// transactional control the narrow Repository interface doesn't expose.
func (r *Repo) DB() *gorm.DB { return r.db }

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}

func (r *Repo) CreateArticle(ctx context.Context, article *models.Article) error {
	var existing models.Article
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND title = ?", article.InstanceID, article.Title).
		First(&existing).Error
	if err == nil {
		return repository.ErrTitleTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(article).Error
}

func (r *Repo) GetArticleByID(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	err := r.db.WithContext(ctx).First(&article, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &article, nil
}

func (r *Repo) GetArticleByAPID(ctx context.Context, apID string) (*models.Article, error) {
	var article models.Article
	err := r.db.WithContext(ctx).Where("ap_id = ?", apID).First(&article).Error
	if err != nil {
		return nil, translate(err)
	}
	return &article, nil
}

func (r *Repo) GetArticleByTitle(ctx context.Context, instanceID uint, title string) (*models.Article, error) {
	var article models.Article
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND title = ?", instanceID, title).
		First(&article).Error
	if err != nil {
		return nil, translate(err)
	}
	return &article, nil
}

func (r *Repo) ListArticles(ctx context.Context, instanceID uint, onlyLocal bool) ([]models.Article, error) {
	q := r.db.WithContext(ctx).Where("instance_id = ?", instanceID)
	if onlyLocal {
		q = q.Where("local = ?", true)
	}
	var articles []models.Article
	err := q.Order("title ASC").Find(&articles).Error
	return articles, err
}

func (r *Repo) UpdateArticleText(ctx context.Context, articleID uint, text string) error {
	return r.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ?", articleID).
		Update("text", text).Error
}

func (r *Repo) DeleteArticle(ctx context.Context, articleID uint) error {
	return r.db.WithContext(ctx).Select("Edits").Delete(&models.Article{ID: articleID}).Error
}

func (r *Repo) AppendEdit(ctx context.Context, edit *models.Edit) error {
	return r.db.WithContext(ctx).Create(edit).Error
}

func (r *Repo) GetEditByHash(ctx context.Context, articleID uint, hash versionid.VersionId) (*models.Edit, error) {
	var edit models.Edit
	err := r.db.WithContext(ctx).
		Where("article_id = ? AND hash = ?", articleID, hash).
		First(&edit).Error
	if err != nil {
		return nil, translate(err)
	}
	return &edit, nil
}

func (r *Repo) GetEditByAPID(ctx context.Context, apID string) (*models.Edit, error) {
	var edit models.Edit
	err := r.db.WithContext(ctx).Where("ap_id = ?", apID).First(&edit).Error
	if err != nil {
		return nil, translate(err)
	}
	return &edit, nil
}

func (r *Repo) ListEdits(ctx context.Context, articleID uint) ([]models.Edit, error) {
	var edits []models.Edit
	err := r.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("created ASC, id ASC").
		Find(&edits).Error
	return edits, err
}

func (r *Repo) HeadEdit(ctx context.Context, articleID uint) (*models.Edit, error) {
	var edit models.Edit
	err := r.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("created DESC, id DESC").
		First(&edit).Error
	if err != nil {
		return nil, translate(err)
	}
	return &edit, nil
}

func (r *Repo) CreateInstance(ctx context.Context, instance *models.Instance) error {
	return r.db.WithContext(ctx).Create(instance).Error
}

func (r *Repo) GetLocalInstance(ctx context.Context) (*models.Instance, error) {
	var instance models.Instance
	err := r.db.WithContext(ctx).Where("local = ?", true).First(&instance).Error
	if err != nil {
		return nil, translate(err)
	}
	return &instance, nil
}

func (r *Repo) GetInstanceByAPID(ctx context.Context, apID string) (*models.Instance, error) {
	var instance models.Instance
	err := r.db.WithContext(ctx).Where("ap_id = ?", apID).First(&instance).Error
	if err != nil {
		return nil, translate(err)
	}
	return &instance, nil
}

func (r *Repo) TouchInstanceRefresh(ctx context.Context, instanceID uint) error {
	return r.db.WithContext(ctx).Model(&models.Instance{}).
		Where("id = ?", instanceID).
		Update("last_refreshed_at", time.Now().UTC()).Error
}

func (r *Repo) UpsertFollow(ctx context.Context, followerID, followeeID uint) (*models.Follow, error) {
	var follow models.Follow
	err := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		First(&follow).Error
	if err == nil {
		return &follow, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	follow = models.Follow{FollowerID: followerID, FolloweeID: followeeID}
	if err := r.db.WithContext(ctx).Create(&follow).Error; err != nil {
		return nil, err
	}
	return &follow, nil
}

func (r *Repo) AcceptFollow(ctx context.Context, followerID, followeeID uint) error {
	return r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Update("accepted", true).Error
}

func (r *Repo) ListFollowers(ctx context.Context, instanceID uint) ([]models.Instance, error) {
	var instances []models.Instance
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.follower_id = instances.id").
		Where("follows.followee_id = ? AND follows.accepted = ?", instanceID, true).
		Find(&instances).Error
	return instances, err
}

func (r *Repo) ListFollows(ctx context.Context, instanceID uint) ([]models.Instance, error) {
	var instances []models.Instance
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.followee_id = instances.id").
		Where("follows.follower_id = ? AND follows.accepted = ?", instanceID, true).
		Find(&instances).Error
	return instances, err
}

func (r *Repo) CreatePerson(ctx context.Context, person *models.Person) error {
	return r.db.WithContext(ctx).Create(person).Error
}

func (r *Repo) GetPersonByAPID(ctx context.Context, apID string) (*models.Person, error) {
	var person models.Person
	err := r.db.WithContext(ctx).Where("ap_id = ?", apID).First(&person).Error
	if err != nil {
		return nil, translate(err)
	}
	return &person, nil
}

func (r *Repo) GetLocalPersonByUsername(ctx context.Context, instanceID uint, username string) (*models.Person, error) {
	var person models.Person
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND username = ? AND local = ?", instanceID, username, true).
		First(&person).Error
	if err != nil {
		return nil, translate(err)
	}
	return &person, nil
}

func (r *Repo) EnqueueDelivery(ctx context.Context, entry *models.OutboxEntry) error {
	err := r.db.WithContext(ctx).Create(entry).Error
	if err != nil && isUniqueViolation(err) {
		// Same (activity, recipient) pair already queued; idempotent no-op.
		return nil
	}
	return err
}

func (r *Repo) ListPendingDeliveries(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	return models.FindPendingOutboxEntries(r.db.WithContext(ctx), limit)
}

func (r *Repo) MarkDeliveryPublished(ctx context.Context, id uint) error {
	var entry models.OutboxEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return translate(err)
	}
	return entry.MarkPublished(r.db.WithContext(ctx))
}

func (r *Repo) MarkDeliveryFailed(ctx context.Context, id uint, deliveryErr error) error {
	var entry models.OutboxEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return translate(err)
	}
	return entry.MarkFailed(r.db.WithContext(ctx), deliveryErr)
}

func (r *Repo) MarkActivityProcessed(ctx context.Context, activityID string) error {
	err := r.db.WithContext(ctx).Create(&models.ProcessedActivity{ActivityID: activityID}).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

func (r *Repo) IsActivityProcessed(ctx context.Context, activityID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProcessedActivity{}).
		Where("activity_id = ?", activityID).
		Count(&count).Error
	return count > 0, err
}

// isUniqueViolation reports whether err looks like a unique-constraint
// failure. SQLite and Postgres phrase this differently and GORM does not
// normalize it, so the core only needs to know "already enqueued", not
// the driver-specific error shape.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// gormHclogAdapter routes GORM's query logging through hclog, the way the
// teacher's pkg/database package bridges the two logging interfaces.
type gormHclogAdapter struct {
	logger hclog.Logger
}

func newHclogAdapter(logger hclog.Logger) gormlogger.Interface {
	return &gormHclogAdapter{logger: logger}
}

func (a *gormHclogAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return a
}

func (a *gormHclogAdapter) Info(_ context.Context, msg string, args ...interface{}) {
	a.logger.Info(fmt.Sprintf(msg, args...))
}

func (a *gormHclogAdapter) Warn(_ context.Context, msg string, args ...interface{}) {
	a.logger.Warn(fmt.Sprintf(msg, args...))
}

func (a *gormHclogAdapter) Error(_ context.Context, msg string, args ...interface{}) {
	a.logger.Error(fmt.Sprintf(msg, args...))
}

func (a *gormHclogAdapter) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, rows := fc()
	elapsed := time.Since(begin)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		a.logger.Debug("gorm query error", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
		return
	}
	a.logger.Trace("gorm query", "sql", sql, "rows", rows, "elapsed", elapsed)
}
