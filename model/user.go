package model

import (
	"time"

	"gorm.io/datatypes"
)

// User is a marketplace account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	FirstName      string         `json:"firstName" gorm:"size:100;not null"`
	LastName       string         `json:"lastName" gorm:"size:100;not null"`
	Email          string         `json:"email" gorm:"size:191;not null;uniqueIndex"`
	PasswordHash   string         `json:"-" gorm:"size:255;not null"`
	DisplayName    string         `json:"displayName" gorm:"size:191;index"`
	Location       string         `json:"location" gorm:"size:191"`
	Country        string         `json:"country" gorm:"size:100"`
	Biography      string         `json:"biography" gorm:"type:text"`
	ProfilePicture string         `json:"profilePicture" gorm:"size:512"`
	SocialLinks    datatypes.JSON `json:"socialLinks"`
	CreatedAt      time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
