package models

import (
	"time"
)

// User is the identity projection of a platform account. Accounts are owned by the
// auth service; rows here are upserted from verified token claims.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Nickname  string    `gorm:"size:100" json:"nickname"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
