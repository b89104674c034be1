package model

import "time"

// CatalogEntry is the shared shape of genres, beats and tags.
type CatalogEntry struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"size:191;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"type:text"`
	Color       string    `json:"color" gorm:"size:16"`
	IsActive    bool      `json:"isActive" gorm:"default:true"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Genre struct{ CatalogEntry }

func (Genre) TableName() string { return "genres" }

type Beat struct{ CatalogEntry }

func (Beat) TableName() string { return "beats" }

type Tag struct{ CatalogEntry }

func (Tag) TableName() string { return "tags" }
