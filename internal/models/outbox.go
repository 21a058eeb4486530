package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OutboxEntry is one queued federation delivery: an activity addressed to
// one recipient inbox. It implements the transactional outbox pattern so
// an activity is never lost between the database commit that produced it
// and its eventual HTTP delivery.
type OutboxEntry struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ActivityID   string `gorm:"type:varchar(500);not null;index:idx_outbox_activity_id" json:"activityId"`
	ActivityType string `gorm:"type:varchar(50);not null" json:"activityType"`
	Payload      string `gorm:"type:text;not null" json:"payload"`

	RecipientInbox string `gorm:"type:varchar(500);not null" json:"recipientInbox"`
	SenderAPID     string `gorm:"type:varchar(500);not null" json:"senderApId"`

	// IdempotentKey is {activity_id}:{recipient_inbox}; the same activity
	// fanned out to N recipients produces N distinct outbox rows.
	IdempotentKey string `gorm:"type:varchar(1024);not null;uniqueIndex" json:"idempotentKey"`

	Status          string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_outbox_status" json:"status"`
	PublishAttempts int        `gorm:"default:0" json:"publishAttempts"`
	LastError       string     `gorm:"type:text" json:"lastError,omitempty"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name.
func (OutboxEntry) TableName() string {
	return "outbox_entries"
}

// Outbox entry status constants.
const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusFailed    = "failed"
)

// GenerateOutboxIdempotentKey builds the idempotency key for one
// (activity, recipient) pair.
func GenerateOutboxIdempotentKey(activityID, recipientInbox string) string {
	return fmt.Sprintf("%s:%s", activityID, recipientInbox)
}

// BeforeCreate fills the idempotent key and default status when the
// caller left them zero.
func (o *OutboxEntry) BeforeCreate(tx *gorm.DB) error {
	if o.ActivityID == "" {
		return fmt.Errorf("outbox: activity_id is required")
	}
	if o.RecipientInbox == "" {
		return fmt.Errorf("outbox: recipient_inbox is required")
	}
	if o.IdempotentKey == "" {
		o.IdempotentKey = GenerateOutboxIdempotentKey(o.ActivityID, o.RecipientInbox)
	}
	if o.Status == "" {
		o.Status = OutboxStatusPending
	}
	return nil
}

// MarkPublished marks the entry as successfully delivered.
func (o *OutboxEntry) MarkPublished(db *gorm.DB) error {
	now := time.Now().UTC()
	return db.Model(o).Updates(map[string]interface{}{
		"status":       OutboxStatusPublished,
		"published_at": now,
	}).Error
}

// MarkFailed records a delivery failure and bumps the attempt counter.
func (o *OutboxEntry) MarkFailed(db *gorm.DB, deliveryErr error) error {
	o.PublishAttempts++
	o.LastError = deliveryErr.Error()
	o.Status = OutboxStatusFailed
	return db.Model(o).Updates(map[string]interface{}{
		"status":           OutboxStatusFailed,
		"publish_attempts": o.PublishAttempts,
		"last_error":       deliveryErr.Error(),
	}).Error
}

// Retry resets a failed entry back to pending for another attempt.
func (o *OutboxEntry) Retry(db *gorm.DB) error {
	return db.Model(o).Updates(map[string]interface{}{
		"status":     OutboxStatusPending,
		"last_error": "",
	}).Error
}

// FindPendingOutboxEntries returns up to limit pending deliveries, oldest
// first.
func FindPendingOutboxEntries(db *gorm.DB, limit int) ([]OutboxEntry, error) {
	var entries []OutboxEntry
	err := db.Where("status = ?", OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// GetOutboxByIdempotentKey looks up an entry by its idempotency key, used
// to avoid double-queuing the same (activity, recipient) pair.
func GetOutboxByIdempotentKey(db *gorm.DB, key string) (*OutboxEntry, error) {
	var entry OutboxEntry
	if err := db.Where("idempotent_key = ?", key).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
