package resource

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"beatmarket/core/apperr"
	"beatmarket/core/auth"
	"beatmarket/model"
	"beatmarket/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestEngines(t *testing.T) (*Registry, map[string]*Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "engine.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	reg := Catalog()
	gw := repository.NewGormGateway(db, reg.Schemas()...)
	engines := map[string]*Engine{}
	for _, r := range reg.All() {
		engines[r.Name] = NewEngine(gw, r)
	}
	return reg, engines, db
}

// idOf fails the test when rec carries no id.
func idOf(t *testing.T, rec map[string]any) string {
	t.Helper()
	id, _ := rec["id"].(string)
	if id == "" {
		t.Fatalf("record has no id: %#v", rec)
	}
	return id
}

func TestCatalogMatchesModels(t *testing.T) {
	reg, _, db := newTestEngines(t)
	for _, sc := range reg.Schemas() {
		for col := range sc.Columns {
			if !db.Migrator().HasColumn(sc.Table, col) {
				t.Errorf("table %s has no column %s", sc.Table, col)
			}
		}
	}
}

func TestCreateAppliesDefaultsAndReadRoundTrips(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()

	created, err := engines[Genres].Create(ctx, map[string]any{"name": "  Trap  "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created["name"] != "Trap" {
		t.Fatalf("name not trimmed: %q", created["name"])
	}
	if created["color"] != "#7ED7FF" || created["description"] != "" || created["isActive"] != true {
		t.Fatalf("defaults not applied: %#v", created)
	}

	read, err := engines[Genres].Read(ctx, idOf(t, created))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(read, created) {
		t.Fatalf("Read = %#v\nCreate = %#v", read, created)
	}
}

func TestUniqueKeyConflicts(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()

	cases := []struct {
		resource string
		payload  map[string]any
		message  string
	}{
		{Genres, map[string]any{"name": "Drill"}, "Genre with this name already exists"},
		{Beats, map[string]any{"name": "Boom Bap"}, "Beat with this name already exists"},
		{Tags, map[string]any{"name": "dark"}, "Tag with this name already exists"},
		{Tracks, map[string]any{"trackName": "A", "trackType": "Beat", "trackId": "T-1"}, "Track with this ID already exists"},
		{SoundKits, map[string]any{"kitName": "Drums", "kitId": "K-1"}, "Sound kit with this ID already exists"},
		{Users, map[string]any{"firstName": "A", "lastName": "B", "email": "a@b.io", "password": "pw"}, "User with this email already exists"},
	}
	for _, tc := range cases {
		t.Run(tc.resource, func(t *testing.T) {
			if _, err := engines[tc.resource].Create(ctx, tc.payload); err != nil {
				t.Fatalf("first create: %v", err)
			}
			_, err := engines[tc.resource].Create(ctx, tc.payload)
			if !apperr.Is(err, apperr.KindConflict) {
				t.Fatalf("second create = %v, want Conflict", err)
			}
			if got := apperr.Message(err, ""); got != tc.message {
				t.Fatalf("message = %q, want %q", got, tc.message)
			}
		})
	}
}

func TestConcurrentCreatesYieldOneWinner(t *testing.T) {
	_, engines, db := newTestEngines(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engines[Genres].Create(ctx, map[string]any{"name": "Jersey"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !apperr.Is(err, apperr.KindConflict):
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d creates succeeded, want 1", ok)
	}
}

func TestOptionalUniqueKeyMayBeOmitted(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := engines[Tracks].Create(ctx, map[string]any{"trackName": "Untitled", "trackType": "Beat", "trackId": ""}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
}

func TestSoundKitCategoryNamesNeedNotBeUnique(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		c, err := engines[SoundKitCategories].Create(ctx, map[string]any{"name": "Drums"})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if c["color"] != "#00D4FF" {
			t.Fatalf("color = %v", c["color"])
		}
	}
	if _, err := engines[SoundKitCategories].Create(ctx, map[string]any{"description": "x"}); apperr.Message(err, "") != "Category name is required" {
		t.Fatalf("missing name = %v", err)
	}
}

func TestValidation(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()

	base := func(extra map[string]any) map[string]any {
		p := map[string]any{"trackName": "Song", "trackType": "Beat"}
		for k, v := range extra {
			p[k] = v
		}
		return p
	}
	tests := []struct {
		name    string
		payload map[string]any
		message string
	}{
		{"missing type", map[string]any{"trackName": "Song"}, "Track type is required"},
		{"blank name", map[string]any{"trackName": "  ", "trackType": "Beat"}, "Track name is required"},
		{"bpm low", base(map[string]any{"bpm": 0.0}), "BPM must be between 1 and 300"},
		{"bpm high", base(map[string]any{"bpm": "301"}), "BPM must be between 1 and 300"},
		{"bpm fraction", base(map[string]any{"bpm": 90.5}), "BPM must be a whole number"},
		{"negative price", base(map[string]any{"price": -1.0}), "Price must be a non-negative number"},
		{"publish enum", base(map[string]any{"publish": "Draft"}), "Publish must be one of Private, Public"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engines[Tracks].Create(ctx, tt.payload)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("err = %v, want ValidationFailed", err)
			}
			if got := apperr.Message(err, ""); got != tt.message {
				t.Fatalf("message = %q, want %q", got, tt.message)
			}
		})
	}

	if _, err := engines[Genres].Create(ctx, map[string]any{"name": "X", "color": "blue"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("bad color = %v", err)
	}
}

func TestTrackDefaultsAndAssociations(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()

	track, err := engines[Tracks].Create(ctx, map[string]any{
		"trackName":     "Night Drive",
		"trackType":     "Beat",
		"bpm":           140.0,
		"price":         29.99,
		"genreCategory": "Trap",
		"trackTags":     []any{"dark", " ", "808"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if track["publish"] != "Private" {
		t.Fatalf("publish = %v", track["publish"])
	}
	if !reflect.DeepEqual(track["genreCategory"], []any{"Trap"}) {
		t.Fatalf("scalar association not wrapped: %#v", track["genreCategory"])
	}
	if !reflect.DeepEqual(track["beatCategory"], []any{}) {
		t.Fatalf("beatCategory = %#v", track["beatCategory"])
	}
	if !reflect.DeepEqual(track["trackTags"], []any{"dark", "808"}) {
		t.Fatalf("trackTags = %#v", track["trackTags"])
	}
	if track["bpm"] != int64(140) || track["price"] != 29.99 {
		t.Fatalf("numbers = %#v %#v", track["bpm"], track["price"])
	}
	if _, ok := track["trackId"]; ok {
		t.Fatal("absent trackId should not be returned")
	}
}

func TestPartialUpdate(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()

	created, err := engines[Genres].Create(ctx, map[string]any{"name": "Soul", "color": "#123456"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := idOf(t, created)

	updated, err := engines[Genres].Update(ctx, id, map[string]any{"description": "x"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated["description"] != "x" {
		t.Fatalf("description = %v", updated["description"])
	}
	for k, v := range created {
		if k == "description" || k == "updatedAt" {
			continue
		}
		if !reflect.DeepEqual(updated[k], v) {
			t.Errorf("field %s changed: %v -> %v", k, v, updated[k])
		}
	}

	if _, err := engines[Genres].Update(ctx, id, map[string]any{"unknown": 1}); apperr.Message(err, "") != "No valid fields to update" {
		t.Fatalf("empty update = %v", err)
	}
	if _, err := engines[Genres].Update(ctx, "missing", map[string]any{"description": "y"}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("update missing = %v", err)
	}
}

func TestUpdateUniqueKeyExcludesSelf(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()

	a, _ := engines[Genres].Create(ctx, map[string]any{"name": "A"})
	if _, err := engines[Genres].Create(ctx, map[string]any{"name": "B"}); err != nil {
		t.Fatal(err)
	}
	id := idOf(t, a)

	if _, err := engines[Genres].Update(ctx, id, map[string]any{"name": "A", "description": "same name"}); err != nil {
		t.Fatalf("keeping own name: %v", err)
	}
	if _, err := engines[Genres].Update(ctx, id, map[string]any{"name": "B"}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("taking another name = %v", err)
	}
}

func TestSoftDeleteHidesFromDefaultListing(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()
	kits := engines[SoundKits]

	keep, err := kits.Create(ctx, map[string]any{"kitName": "Keep"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	gone, err := kits.Create(ctx, map[string]any{"kitName": "Gone"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := kits.Delete(ctx, idOf(t, gone)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	listed, err := kits.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0]["id"] != keep["id"] {
		t.Fatalf("listed = %#v", listed)
	}
	for _, k := range listed {
		if k["isActive"] != true {
			t.Fatalf("inactive kit listed: %#v", k)
		}
	}

	all, _ := kits.List(ctx, ListOptions{IncludeInactive: true})
	if len(all) != 2 {
		t.Fatalf("IncludeInactive listed %d kits", len(all))
	}
	still, err := kits.Read(ctx, idOf(t, gone))
	if err != nil || still["isActive"] != false {
		t.Fatalf("soft-deleted kit should stay readable: %v %v", still, err)
	}
	if err := kits.Delete(ctx, "nope"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("delete missing = %v", err)
	}
}

func TestHardDeleteAndListOrder(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()
	tags := engines[Tags]

	var ids []string
	for _, n := range []string{"charlie", "alpha", "bravo"} {
		c, err := tags.Create(ctx, map[string]any{"name": n})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, idOf(t, c))
	}
	if err := tags.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tags.Delete(ctx, ids[0]); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("second delete = %v", err)
	}

	listed, err := tags.List(ctx, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	var names []any
	for _, tg := range listed {
		names = append(names, tg["name"])
	}
	if !reflect.DeepEqual(names, []any{"alpha", "bravo"}) {
		t.Fatalf("names = %v", names)
	}
}

func TestListMatchFilter(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()
	tracks := engines[Tracks]

	tracks.Create(ctx, map[string]any{"trackName": "A", "trackType": "Beat", "publish": "Public"})
	tracks.Create(ctx, map[string]any{"trackName": "B", "trackType": "Beat"})

	public, err := tracks.List(ctx, ListOptions{Match: map[string]string{"publish": "Public"}})
	if err != nil || len(public) != 1 || public[0]["trackName"] != "A" {
		t.Fatalf("public = %v, %v", public, err)
	}
	if _, err := tracks.List(ctx, ListOptions{Match: map[string]string{"bpm": "120"}}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("non-string filter = %v", err)
	}
	all, err := tracks.List(ctx, ListOptions{Match: map[string]string{"_": "1700000000", "passwordHash": "x"}})
	if err != nil || len(all) != 2 {
		t.Fatalf("unknown keys should be ignored: %v, %v", all, err)
	}
}

func TestUserPasswordIsHashedAndHidden(t *testing.T) {
	_, engines, _ := newTestEngines(t)
	ctx := context.Background()
	users := engines[Users]

	u, err := users.Create(ctx, map[string]any{
		"firstName": "Ada", "lastName": "Lovelace",
		"email": "  Ada@Example.com ", "password": "s3cret",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := u["password"]; ok {
		t.Fatal("password returned")
	}
	if _, ok := u["passwordHash"]; ok {
		t.Fatal("password hash returned")
	}
	if u["email"] != "ada@example.com" || u["displayName"] != "Ada Lovelace" {
		t.Fatalf("user = %#v", u)
	}
	links, _ := u["socialLinks"].(map[string]any)
	if len(links) != len(SocialNetworks) {
		t.Fatalf("socialLinks = %#v", u["socialLinks"])
	}

	raw, err := users.Lookup(ctx, repository.Filter{repository.Eq("email", "ada@example.com")})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	hash, _ := raw["password_hash"].(string)
	if hash == "" || hash == "s3cret" || !auth.CheckPasswordHash("s3cret", hash) {
		t.Fatalf("password not hashed: %q", hash)
	}

	if _, err := users.Create(ctx, map[string]any{"firstName": "A", "lastName": "B", "email": "nope", "password": "x"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("bad email = %v", err)
	}
}

// countFailure lets every call through except Count.
type countFailure struct {
	repository.Gateway
}

func (countFailure) Count(context.Context, string, repository.Filter) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestUniqueCheckStorageFailure(t *testing.T) {
	reg, engines, _ := newTestEngines(t)
	ctx := context.Background()
	if _, err := engines[Genres].Create(ctx, map[string]any{"name": "Trap"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	broken := NewEngine(countFailure{engines[Genres].gw}, reg.MustGet(Genres))
	_, err := broken.Create(ctx, map[string]any{"name": "Drill"})
	if !apperr.Is(err, apperr.KindStorage) || apperr.Message(err, "") != "Failed to check name" {
		t.Fatalf("err = %v, want StorageFailure", err)
	}
	// Categories have no unique key, so Count is never consulted.
	cats := NewEngine(countFailure{engines[SoundKitCategories].gw}, reg.MustGet(SoundKitCategories))
	if _, err := cats.Create(ctx, map[string]any{"name": "Drums"}); err != nil {
		t.Fatalf("Create category: %v", err)
	}
}
