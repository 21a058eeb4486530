package models

import "time"

// ProcessedActivity records that an inbound activity id has already run
// to completion, so a redelivered activity is a no-op rather than a
// duplicate side effect.
type ProcessedActivity struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ActivityID string `gorm:"type:varchar(500);not null;uniqueIndex" json:"activityId"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name.
func (ProcessedActivity) TableName() string {
	return "processed_activities"
}
