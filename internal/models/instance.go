package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Instance represents one participant in the federation, local or remote.
// A local instance additionally tracks its own private key and the
// follow relationships it has accumulated.
type Instance struct {
	ID uint `gorm:"primaryKey" json:"id"`

	InstanceUUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"instanceUuid"`

	APID        string `gorm:"type:varchar(500);not null;uniqueIndex" json:"apId"`
	Domain      string `gorm:"type:varchar(255);not null;index:idx_instances_domain" json:"domain"`
	InboxURL    string `gorm:"type:varchar(500);not null" json:"inboxUrl"`
	ArticlesURL string `gorm:"type:varchar(500)" json:"articlesUrl,omitempty"`

	PublicKey  string `gorm:"type:text;not null" json:"publicKey"`
	PrivateKey string `gorm:"type:text" json:"-"`

	Local           bool      `gorm:"not null;default:false;index:idx_instances_local" json:"local"`
	LastRefreshedAt time.Time `json:"lastRefreshedAt"`

	Metadata *string `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

// TableName specifies the table name.
func (Instance) TableName() string {
	return "instances"
}

// BeforeCreate assigns an InstanceUUID and stamps LastRefreshedAt when
// either is left zero by the caller.
func (i *Instance) BeforeCreate(tx *gorm.DB) error {
	if i.InstanceUUID == uuid.Nil {
		i.InstanceUUID = uuid.New()
	}
	if i.LastRefreshedAt.IsZero() {
		i.LastRefreshedAt = time.Now().UTC()
	}
	return nil
}

// GetLocalInstance returns the one row marked local == true.
func GetLocalInstance(db *gorm.DB) (*Instance, error) {
	var instance Instance
	if err := db.Where("local = ?", true).First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// GetInstanceByAPID looks an instance up by its federation id, local or
// remote.
func GetInstanceByAPID(db *gorm.DB, apID string) (*Instance, error) {
	var instance Instance
	if err := db.Where("ap_id = ?", apID).First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// TouchRefresh updates LastRefreshedAt, used after pulling a remote
// instance's current actor document.
func (i *Instance) TouchRefresh(db *gorm.DB) error {
	return db.Model(i).Update("last_refreshed_at", time.Now().UTC()).Error
}

// Follow records a directed follow edge: one instance following another.
// Rows are addressed by the pair (follower_id, followee_id); accepted
// becomes true once the followee's Accept activity is processed.
type Follow struct {
	ID uint `gorm:"primaryKey" json:"id"`

	FollowerID uint `gorm:"not null;uniqueIndex:idx_follow_pair,priority:1" json:"followerId"`
	FolloweeID uint `gorm:"not null;uniqueIndex:idx_follow_pair,priority:2" json:"followeeId"`

	Accepted bool `gorm:"not null;default:false" json:"accepted"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Follower *Instance `gorm:"foreignKey:FollowerID" json:"-"`
	Followee *Instance `gorm:"foreignKey:FolloweeID" json:"-"`
}

// TableName specifies the table name.
func (Follow) TableName() string {
	return "follows"
}

// MarkAccepted flips a pending follow edge once an Accept is processed.
func (f *Follow) MarkAccepted(db *gorm.DB) error {
	return db.Model(f).Update("accepted", true).Error
}

// GetFollow looks up the edge between two instances, if any.
func GetFollow(db *gorm.DB, followerID, followeeID uint) (*Follow, error) {
	var follow Follow
	err := db.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).First(&follow).Error
	if err != nil {
		return nil, err
	}
	return &follow, nil
}

// ListFollowers returns the accepted instances following instanceID.
func ListFollowers(db *gorm.DB, instanceID uint) ([]Instance, error) {
	var instances []Instance
	err := db.Joins("JOIN follows ON follows.follower_id = instances.id").
		Where("follows.followee_id = ? AND follows.accepted = ?", instanceID, true).
		Find(&instances).Error
	return instances, err
}

// ListFollows returns the accepted instances that instanceID follows.
func ListFollows(db *gorm.DB, instanceID uint) ([]Instance, error) {
	var instances []Instance
	err := db.Joins("JOIN follows ON follows.followee_id = instances.id").
		Where("follows.follower_id = ? AND follows.accepted = ?", instanceID, true).
		Find(&instances).Error
	return instances, err
}
