package model

import (
	"time"

	"gorm.io/datatypes"
)

// SoundKit is a downloadable sample pack. Deleting one only clears IsActive.
type SoundKit struct {
	ID                     string         `json:"id" gorm:"primaryKey;size:36"`
	KitName                string         `json:"kitName" gorm:"size:255;not null"`
	KitID                  *string        `json:"kitId,omitempty" gorm:"size:191;uniqueIndex"`
	Description            string         `json:"description" gorm:"type:text"`
	Category               datatypes.JSON `json:"category"`
	Price                  *float64       `json:"price,omitempty"`
	Producer               string         `json:"producer" gorm:"size:191"`
	Musician               string         `json:"musician" gorm:"size:191"`
	MusicianProfilePicture string         `json:"musicianProfilePicture" gorm:"size:512"`
	KitType                string         `json:"kitType" gorm:"size:64"`
	Bpm                    *int64         `json:"bpm,omitempty"`
	Key                    string         `json:"key" gorm:"size:32"`
	KitImage               string         `json:"kitImage" gorm:"size:512"`
	KitFile                string         `json:"kitFile" gorm:"size:512"`
	Tags                   datatypes.JSON `json:"tags"`
	Publish                string         `json:"publish" gorm:"size:16;default:'Private'"`
	SeoTitle               string         `json:"seoTitle" gorm:"size:255"`
	SeoKeyword             string         `json:"seoKeyword" gorm:"size:255"`
	SeoDescription         string         `json:"seoDescription" gorm:"type:text"`
	IsActive               bool           `json:"isActive" gorm:"default:true;index"`
	CreatedAt              time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt              time.Time      `json:"updatedAt"`
}

func (SoundKit) TableName() string { return "sound_kits" }

// SoundKitLabel is the shared shape of sound-kit categories and tags.
// Names are not unique.
type SoundKitLabel struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"size:191;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Color       string    `json:"color" gorm:"size:16"`
	IsActive    bool      `json:"isActive" gorm:"default:true"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type SoundKitCategory struct{ SoundKitLabel }

func (SoundKitCategory) TableName() string { return "sound_kit_categories" }

type SoundKitTag struct{ SoundKitLabel }

func (SoundKitTag) TableName() string { return "sound_kit_tags" }

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{}, &Track{}, &Genre{}, &Beat{}, &Tag{},
		&SoundKit{}, &SoundKitCategory{}, &SoundKitTag{},
	}
}
