// Package musician derives musician profiles from track records. Musicians
// are not stored; a musician is every track sharing a musician name.
package musician

import (
	"context"
	"sort"
	"strings"

	"beatmarket/core/apperr"
	"beatmarket/repository"
)

const (
	fieldMusician = "musician"
	fieldPicture  = "musician_profile_picture"
	fieldAbout    = "about"

	noBio = "No bio available"
)

// Musician is the aggregated view of one name. The id is the name itself.
type Musician struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture"`
	Bio            string `json:"bio,omitempty"`
	TrackCount     int    `json:"trackCount"`
}

type Aggregator struct {
	gw     repository.Gateway
	tracks string
}

// NewAggregator reads tracks from table through gw.
func NewAggregator(gw repository.Gateway, table string) *Aggregator {
	return &Aggregator{gw: gw, tracks: table}
}

var oldestFirst = repository.Sort{Field: repository.FieldCreatedAt}

// List groups tracks by exact musician name, sorted by name.
func (a *Aggregator) List(ctx context.Context) ([]Musician, error) {
	recs, err := a.gw.FindMany(ctx, a.tracks, repository.Filter{repository.NotEmpty(fieldMusician)}, oldestFirst)
	if err != nil {
		return nil, apperr.Storage("Failed to get musicians", err)
	}

	byName := map[string]*Musician{}
	for _, rec := range recs {
		name := str(rec, fieldMusician)
		if name == "" {
			continue
		}
		m, ok := byName[name]
		if !ok {
			m = &Musician{ID: name, Name: name}
			byName[name] = m
		}
		if m.ProfilePicture == "" {
			m.ProfilePicture = str(rec, fieldPicture)
		}
		m.TrackCount++
	}

	out := make([]Musician, 0, len(byName))
	for _, m := range byName {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get matches the name exactly, then case-insensitively.
func (a *Aggregator) Get(ctx context.Context, name string) (*Musician, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.NotFoundf("Musician not found")
	}

	recs, err := a.gw.FindMany(ctx, a.tracks, repository.Filter{repository.Eq(fieldMusician, name)}, oldestFirst)
	if err == nil && len(recs) == 0 {
		recs, err = a.gw.FindMany(ctx, a.tracks, repository.Filter{repository.EqFold(fieldMusician, name)}, oldestFirst)
	}
	if err != nil {
		return nil, apperr.Storage("Failed to get musician tracks", err)
	}
	if len(recs) == 0 {
		return nil, apperr.NotFoundf("Musician not found")
	}

	first := recs[0]
	m := &Musician{
		ID:         str(first, fieldMusician),
		Name:       str(first, fieldMusician),
		Bio:        str(first, fieldAbout),
		TrackCount: len(recs),
	}
	for _, rec := range recs {
		if m.ProfilePicture = str(rec, fieldPicture); m.ProfilePicture != "" {
			break
		}
	}
	if m.Bio == "" {
		m.Bio = noBio
	}
	return m, nil
}

func str(rec repository.Record, key string) string {
	s, _ := rec[key].(string)
	return strings.TrimSpace(s)
}
