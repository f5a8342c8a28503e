package models

import "time"

const RoleUser = "USER"

// User owns trades and alerts. NotificationHandle is the messaging platform
// id mentioned when one of the user's alerts fires.
type User struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Username           string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash       string    `gorm:"not null" json:"-"`
	Role               string    `gorm:"size:16" json:"role"`
	NotificationHandle string    `json:"notification_handle,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
