package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Article is a titled document whose current text is the materialization
// of its edit chain applied in order starting from the empty string.
type Article struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ArticleUUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"articleUuid"`

	Title string `gorm:"type:varchar(500);not null;index:idx_articles_title_instance,priority:1" json:"title"`
	Text  string `gorm:"type:text;not null" json:"text"`

	APID       string `gorm:"type:varchar(500);not null;uniqueIndex" json:"apId"`
	InstanceID uint   `gorm:"not null;index:idx_articles_title_instance,priority:2" json:"instanceId"`

	Local     bool `gorm:"not null;default:true" json:"local"`
	Protected bool `gorm:"not null;default:false" json:"protected"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`

	Instance *Instance `gorm:"foreignKey:InstanceID" json:"-"`
	Edits    []Edit    `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name.
func (Article) TableName() string {
	return "articles"
}

// BeforeCreate ensures an ArticleUUID is always present before insert.
func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.ArticleUUID == uuid.Nil {
		a.ArticleUUID = uuid.New()
	}
	return nil
}

// GetArticleByAPID looks an article up by its federation id.
func GetArticleByAPID(db *gorm.DB, apID string) (*Article, error) {
	var article Article
	if err := db.Where("ap_id = ?", apID).First(&article).Error; err != nil {
		return nil, err
	}
	return &article, nil
}

// GetArticleByTitle looks an article up within one instance by title.
func GetArticleByTitle(db *gorm.DB, instanceID uint, title string) (*Article, error) {
	var article Article
	err := db.Where("instance_id = ? AND title = ?", instanceID, title).First(&article).Error
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// ListLocalArticles returns every article owned by the given instance.
func ListLocalArticles(db *gorm.DB, instanceID uint, onlyLocal bool) ([]Article, error) {
	var articles []Article
	q := db.Where("instance_id = ?", instanceID)
	if onlyLocal {
		q = q.Where("local = ?", true)
	}
	err := q.Order("title ASC").Find(&articles).Error
	return articles, err
}
