package resource

import (
	"context"
	"strings"

	"beatmarket/core/apperr"
	"beatmarket/core/auth"
	"beatmarket/repository"
)

// Route names of the registered resources.
const (
	Users              = "users"
	Tracks             = "tracks"
	Genres             = "genres"
	Beats              = "beats"
	Tags               = "tags"
	SoundKits          = "sound-kits"
	SoundKitCategories = "sound-kit-categories"
	SoundKitTags       = "sound-kit-tags"
)

const (
	publishPrivate = "Private"
	publishPublic  = "Public"
)

var (
	byNewest = repository.Sort{Field: repository.FieldCreatedAt, Desc: true}
	byName   = repository.Sort{Field: "name"}
)

// SocialNetworks are the keys every user's social_links map carries.
var SocialNetworks = []string{"facebook", "twitter", "instagram", "youtube", "linkedin", "website"}

// Catalog builds the registry of every resource kind the API serves.
func Catalog() *Registry {
	return NewRegistry(
		userResource(),
		trackResource(),
		catalogEntry(Genres, "Genre", "genres", "genre", "genres", "#7ED7FF"),
		catalogEntry(Beats, "Beat", "beats", "beat", "beats", "#E100FF"),
		catalogEntry(Tags, "Tag", "tags", "tag", "tags", "#FF6B35"),
		soundKitResource(),
		soundKitLabel(SoundKitCategories, "Category", "Sound kit category", "sound_kit_categories", "category", "categories", "#00D4FF"),
		soundKitLabel(SoundKitTags, "Tag", "Sound kit tag", "sound_kit_tags", "tag", "tags", "#FF6B35"),
	)
}

func text(name string) Field {
	return Field{Name: name, Kind: repository.KindString, Trim: true}
}

func textDefault(name string) Field {
	f := text(name)
	f.Default = ""
	return f
}

func required(name, label string) Field {
	f := text(name)
	f.Required = true
	f.Label = label
	return f
}

func list(name string) Field {
	return Field{Name: name, Kind: repository.KindList, Default: []any{}}
}

func publishField() Field {
	return Field{
		Name: "publish", Label: "Publish", Kind: repository.KindString, Trim: true,
		Default:    publishPrivate,
		Validators: []Validator{OneOf(publishPrivate, publishPublic)},
	}
}

func bpmField() Field {
	return Field{Name: "bpm", Label: "BPM", Kind: repository.KindInt, Validators: []Validator{IntRange(1, 300)}}
}

func priceField() Field {
	return Field{Name: "price", Label: "Price", Kind: repository.KindFloat, Validators: []Validator{NonNegative()}}
}

func activeField() Field {
	return Field{Name: FieldActive, Kind: repository.KindBool, Default: true}
}

func colorField(def string) Field {
	return Field{Name: "color", Label: "Color", Kind: repository.KindString, Trim: true, Default: def, Validators: []Validator{HexColor()}}
}

func defaultSocialLinks(repository.Record) any {
	links := make(map[string]any, len(SocialNetworks))
	for _, k := range SocialNetworks {
		links[k] = ""
	}
	return links
}

func userResource() *Resource {
	email := required("email", "Email")
	email.Lower = true
	email.Validators = []Validator{Email()}

	displayName := text("display_name")
	displayName.DefaultFunc = func(rec repository.Record) any {
		first, _ := rec["first_name"].(string)
		last, _ := rec["last_name"].(string)
		return strings.TrimSpace(first + " " + last)
	}

	return &Resource{
		Name: Users, Label: "User", Table: "users", Singular: "user", Plural: "users",
		Fields: []Field{
			required("first_name", "First name"),
			required("last_name", "Last name"),
			email,
			{Name: "password", Label: "Password", Kind: repository.KindString, Required: true, Virtual: true, Hidden: true},
			{Name: "password_hash", Kind: repository.KindString, Hidden: true, ReadOnly: true},
			displayName,
			textDefault("location"),
			textDefault("country"),
			textDefault("biography"),
			textDefault("profile_picture"),
			{Name: "social_links", Kind: repository.KindMap, DefaultFunc: defaultSocialLinks},
		},
		UniqueKey: "email", UniqueLabel: "email",
		Delete:  HardDelete,
		Sort:    byNewest,
		Prepare: hashPassword,
	}
}

// hashPassword replaces the plaintext password with its bcrypt hash.
func hashPassword(_ context.Context, rec repository.Record, _ bool) error {
	raw, ok := rec["password"]
	if !ok {
		return nil
	}
	delete(rec, "password")
	pw, _ := raw.(string)
	if pw == "" {
		return apperr.Validation("Password is required")
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return apperr.Internal("Failed to secure password", err)
	}
	rec["password_hash"] = hash
	return nil
}

func trackResource() *Resource {
	trackID := text("track_id")
	trackID.Label = "Track ID"
	trackID.EmptyAsNull = true

	return &Resource{
		Name: Tracks, Label: "Track", Table: "tracks", Singular: "track", Plural: "tracks",
		Fields: []Field{
			required("track_name", "Track name"),
			trackID,
			bpmField(),
			text("key"),
			priceField(),
			text("musician"),
			text("musician_profile_picture"),
			required("track_type", "Track type"),
			text("mood"),
			text("energy"),
			text("instrument"),
			text("platform"),
			text("track_image"),
			text("track_file"),
			text("about"),
			publishField(),
			list("genre_category"),
			list("beat_category"),
			list("track_tags"),
			text("seo_title"),
			text("seo_keyword"),
			text("seo_description"),
		},
		UniqueKey: "track_id", UniqueLabel: "ID",
		Delete: HardDelete,
		Sort:   byNewest,
	}
}

// catalogEntry builds genres, beats and tags, which share one schema.
func catalogEntry(name, label, table, singular, plural, color string) *Resource {
	return &Resource{
		Name: name, Label: label, Table: table, Singular: singular, Plural: plural,
		Fields: []Field{
			required("name", label+" name"),
			textDefault("description"),
			colorField(color),
			activeField(),
		},
		UniqueKey: "name", UniqueLabel: "name",
		Delete: HardDelete,
		Sort:   byName,
	}
}

func soundKitResource() *Resource {
	kitID := text("kit_id")
	kitID.Label = "Kit ID"
	kitID.EmptyAsNull = true

	return &Resource{
		Name: SoundKits, Label: "Sound kit", Table: "sound_kits", Singular: "soundKit", Plural: "soundKits",
		Fields: []Field{
			required("kit_name", "Kit name"),
			kitID,
			textDefault("description"),
			list("category"),
			priceField(),
			text("producer"),
			text("musician"),
			text("musician_profile_picture"),
			text("kit_type"),
			bpmField(),
			text("key"),
			text("kit_image"),
			text("kit_file"),
			list("tags"),
			publishField(),
			text("seo_title"),
			text("seo_keyword"),
			text("seo_description"),
			activeField(),
		},
		UniqueKey: "kit_id", UniqueLabel: "ID",
		Delete: SoftDelete,
		Sort:   byNewest,
	}
}

// soundKitLabel builds sound-kit categories and tags. Their names are not unique.
func soundKitLabel(name, label, title, table, singular, plural, color string) *Resource {
	return &Resource{
		Name: name, Label: label, Title: title, Table: table, Singular: singular, Plural: plural,
		Fields: []Field{
			required("name", label+" name"),
			textDefault("description"),
			colorField(color),
			activeField(),
		},
		Delete: HardDelete,
		Sort:   byNewest,
	}
}
