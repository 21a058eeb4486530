package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Person is a federation actor, analogous to Instance but owning an
// optional local account. Remote persons never have PasswordHash set.
type Person struct {
	ID uint `gorm:"primaryKey" json:"id"`

	PersonUUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"personUuid"`

	Username string `gorm:"type:varchar(255);not null;index:idx_people_username_instance,priority:1" json:"username"`
	APID     string `gorm:"type:varchar(500);not null;uniqueIndex" json:"apId"`

	InstanceID uint `gorm:"not null;index:idx_people_username_instance,priority:2" json:"instanceId"`
	Local      bool `gorm:"not null;default:false;index:idx_people_local" json:"local"`
	Admin      bool `gorm:"not null;default:false" json:"admin"`

	PasswordHash string `gorm:"type:varchar(255)" json:"-"`

	PublicKey  string `gorm:"type:text;not null" json:"publicKey"`
	PrivateKey string `gorm:"type:text" json:"-"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`

	Instance *Instance `gorm:"foreignKey:InstanceID" json:"-"`
}

// TableName specifies the table name.
func (Person) TableName() string {
	return "people"
}

// BeforeCreate assigns a PersonUUID when the caller leaves it zero.
func (p *Person) BeforeCreate(tx *gorm.DB) error {
	if p.PersonUUID == uuid.Nil {
		p.PersonUUID = uuid.New()
	}
	return nil
}

// HasLocalAccount reports whether this person can authenticate locally.
func (p *Person) HasLocalAccount() bool {
	return p.Local && p.PasswordHash != ""
}

// GetPersonByAPID looks a person up by their federation id.
func GetPersonByAPID(db *gorm.DB, apID string) (*Person, error) {
	var person Person
	if err := db.Where("ap_id = ?", apID).First(&person).Error; err != nil {
		return nil, err
	}
	return &person, nil
}

// GetLocalPersonByUsername looks up a local account by username.
func GetLocalPersonByUsername(db *gorm.DB, instanceID uint, username string) (*Person, error) {
	var person Person
	err := db.Where("instance_id = ? AND username = ? AND local = ?", instanceID, username, true).
		First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}
