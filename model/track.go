package model

import (
	"time"

	"gorm.io/datatypes"
)

// Track is a beat or song listed for sale.
type Track struct {
	ID                     string         `json:"id" gorm:"primaryKey;size:36"`
	TrackName              string         `json:"trackName" gorm:"size:255;not null"`
	TrackID                *string        `json:"trackId,omitempty" gorm:"size:191;uniqueIndex"` // external identifier, optional
	Bpm                    *int64         `json:"bpm,omitempty"`
	Key                    string         `json:"key" gorm:"size:32"`
	Price                  *float64       `json:"price,omitempty"`
	Musician               string         `json:"musician" gorm:"size:191;index"`
	MusicianProfilePicture string         `json:"musicianProfilePicture" gorm:"size:512"`
	TrackType              string         `json:"trackType" gorm:"size:64;not null"`
	Mood                   string         `json:"mood" gorm:"size:64"`
	Energy                 string         `json:"energy" gorm:"size:64"`
	Instrument             string         `json:"instrument" gorm:"size:128"`
	Platform               string         `json:"platform" gorm:"size:64"`
	TrackImage             string         `json:"trackImage" gorm:"size:512"`
	TrackFile              string         `json:"trackFile" gorm:"size:512"`
	About                  string         `json:"about" gorm:"type:text"`
	Publish                string         `json:"publish" gorm:"size:16;default:'Private'"`
	GenreCategory          datatypes.JSON `json:"genreCategory"`
	BeatCategory           datatypes.JSON `json:"beatCategory"`
	TrackTags              datatypes.JSON `json:"trackTags"`
	SeoTitle               string         `json:"seoTitle" gorm:"size:255"`
	SeoKeyword             string         `json:"seoKeyword" gorm:"size:255"`
	SeoDescription         string         `json:"seoDescription" gorm:"type:text"`
	CreatedAt              time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt              time.Time      `json:"updatedAt"`
}

func (Track) TableName() string {
	return "tracks"
}
