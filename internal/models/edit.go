package models

import (
	"time"

	"github.com/quillmesh/quillmesh/pkg/versionid"
	"gorm.io/gorm"
)

// Edit is a single entry in an article's append-only chain.
type Edit struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Hash versionid.VersionId `gorm:"type:varchar(32);not null;index:idx_edits_hash" json:"hash"`

	APID       string `gorm:"type:varchar(500);not null;uniqueIndex" json:"apId"`
	ArticleID  uint   `gorm:"not null;index:idx_edits_article_id" json:"articleId"`
	CreatorID  uint   `gorm:"not null;index:idx_edits_creator_id" json:"creatorId"`
	Diff       string `gorm:"type:text;not null" json:"diff"`
	Summary    string `gorm:"type:varchar(500)" json:"summary,omitempty"`
	PreviousID versionid.VersionId `gorm:"type:varchar(32);not null" json:"previousVersionId"`

	Created time.Time `gorm:"not null" json:"created"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Article *Article `gorm:"foreignKey:ArticleID" json:"-"`
	Creator *Person  `gorm:"foreignKey:CreatorID" json:"-"`
}

// TableName specifies the table name.
func (Edit) TableName() string {
	return "edits"
}

// BeforeCreate stamps Created if the caller left it zero, matching the
// teacher convention of filling audit timestamps in a model hook rather
// than leaving it to the caller.
func (e *Edit) BeforeCreate(tx *gorm.DB) error {
	if e.Created.IsZero() {
		e.Created = time.Now().UTC()
	}
	return nil
}

// GetEditByHash looks an edit up by its VersionId within one article.
func GetEditByHash(db *gorm.DB, articleID uint, hash versionid.VersionId) (*Edit, error) {
	var edit Edit
	err := db.Where("article_id = ? AND hash = ?", articleID, hash).First(&edit).Error
	if err != nil {
		return nil, err
	}
	return &edit, nil
}

// GetEditByAPID looks an edit up by its federation id.
func GetEditByAPID(db *gorm.DB, apID string) (*Edit, error) {
	var edit Edit
	if err := db.Where("ap_id = ?", apID).First(&edit).Error; err != nil {
		return nil, err
	}
	return &edit, nil
}

// ListEditsForArticle returns an article's chain in causal order.
func ListEditsForArticle(db *gorm.DB, articleID uint) ([]Edit, error) {
	var edits []Edit
	err := db.Where("article_id = ?", articleID).Order("created ASC, id ASC").Find(&edits).Error
	return edits, err
}

// HeadEdit returns the last edit committed to the article's chain, or
// gorm.ErrRecordNotFound if the article has no edits yet.
func HeadEdit(db *gorm.DB, articleID uint) (*Edit, error) {
	var edit Edit
	err := db.Where("article_id = ?", articleID).Order("created DESC, id DESC").First(&edit).Error
	if err != nil {
		return nil, err
	}
	return &edit, nil
}
