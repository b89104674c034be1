package repository

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"beatmarket/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testItem struct {
	ID        string  `gorm:"primaryKey;size:36"`
	Name      string  `gorm:"size:191;uniqueIndex"`
	Code      *string `gorm:"size:64;uniqueIndex"`
	Score     *int64
	Price     *float64
	IsActive  bool
	Tags      datatypes.JSON
	Links     datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (testItem) TableName() string { return "items" }

var itemSchema = Schema{
	Table: "items",
	Columns: map[string]Kind{
		"name":      KindString,
		"code":      KindString,
		"score":     KindInt,
		"price":     KindFloat,
		"is_active": KindBool,
		"tags":      KindList,
		"links":     KindMap,
	},
	Unique: []string{"name", "code"},
}

func newTestGateway(t *testing.T) Gateway {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "gw.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&testItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormGateway(db, itemSchema)
}

func TestGormInsertAndFind(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	stored, err := gw.Insert(ctx, "items", Record{
		"name":      "Trap",
		"score":     int64(7),
		"price":     9.99,
		"is_active": true,
		"tags":      []any{"dark", "808"},
		"links":     map[string]any{"website": ""},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	id, _ := stored["id"].(string)
	if id == "" {
		t.Fatal("expected generated id")
	}
	if _, ok := stored["created_at"].(time.Time); !ok {
		t.Fatalf("created_at = %T", stored["created_at"])
	}

	got, err := gw.FindOne(ctx, "items", ByID(id))
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got["name"] != "Trap" || got["score"] != int64(7) || got["price"] != 9.99 || got["is_active"] != true {
		t.Fatalf("unexpected record: %#v", got)
	}
	if !reflect.DeepEqual(got["tags"], []any{"dark", "808"}) {
		t.Fatalf("tags = %#v", got["tags"])
	}
	if !reflect.DeepEqual(got["links"], map[string]any{"website": ""}) {
		t.Fatalf("links = %#v", got["links"])
	}
	if got["code"] != nil {
		t.Fatalf("absent code should be nil, got %#v", got["code"])
	}
}

func TestGormUniqueIndexReportsDuplicate(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	if _, err := gw.Insert(ctx, "items", Record{"name": "Drill"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	// Two rows without a code must not collide.
	if _, err := gw.Insert(ctx, "items", Record{"name": "Lofi"}); err != nil {
		t.Fatalf("second insert: %v", err)
	}
	_, err := gw.Insert(ctx, "items", Record{"name": "Drill"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGormFiltersAndSort(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	for _, name := range []string{"Bravo", "alpha", "Charlie", ""} {
		if _, err := gw.Insert(ctx, "items", Record{"name": name, "is_active": name != "Charlie"}); err != nil {
			t.Fatalf("insert %q: %v", name, err)
		}
	}

	active, err := gw.FindMany(ctx, "items", Filter{Eq("is_active", true), NotEmpty("name")}, Sort{Field: "name"})
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	var names []string
	for _, r := range active {
		names = append(names, r["name"].(string))
	}
	if !reflect.DeepEqual(names, []string{"Bravo", "alpha"}) {
		t.Fatalf("names = %v", names)
	}

	folded, err := gw.FindOne(ctx, "items", Filter{EqFold("name", "ALPHA")})
	if err != nil || folded["name"] != "alpha" {
		t.Fatalf("EqFold lookup = %v, %v", folded, err)
	}

	n, err := gw.Count(ctx, "items", Filter{Ne("name", "Bravo")})
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestGormUpdateAndDelete(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	stored, err := gw.Insert(ctx, "items", Record{"name": "House", "price": 1.5})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	id, _ := stored["id"].(string)
	if id == "" {
		t.Fatalf("Insert returned no id: %#v", stored)
	}

	updated, err := gw.Update(ctx, "items", id, Record{"price": 3.0})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated["price"] != 3.0 || updated["name"] != "House" {
		t.Fatalf("partial update lost fields: %#v", updated)
	}

	if _, err := gw.Update(ctx, "items", "missing", Record{"price": 1.0}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update missing = %v", err)
	}
	if err := gw.Delete(ctx, "items", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := gw.Delete(ctx, "items", id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete = %v", err)
	}
	if _, err := gw.FindOne(ctx, "items", ByID(id)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindOne after delete = %v", err)
	}
}

func TestGormRejectsUnknownColumns(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	if _, err := gw.FindMany(ctx, "items", Filter{Eq("name; DROP TABLE items", 1)}); err == nil {
		t.Fatal("expected error for unknown filter column")
	}
	if _, err := gw.Insert(ctx, "items", Record{"nope": 1}); err == nil {
		t.Fatal("expected error for unknown insert column")
	}
	if _, err := gw.FindMany(ctx, "ghosts", nil); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

var genreSchema = Schema{
	Table: "genres",
	Columns: map[string]Kind{
		"name":        KindString,
		"description": KindString,
		"color":       KindString,
		"is_active":   KindBool,
	},
	Unique: []string{"name"},
}

// The genres table is migrated from the real model so its bool column gets
// the type SQLite actually declares for it.
func TestGormBoolRoundTripOnMigratedModel(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "genres.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Genre{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	gw := NewGormGateway(db, genreSchema)
	ctx := context.Background()

	on, err := gw.Insert(ctx, "genres", Record{"name": "Trap", "color": "#7ED7FF", "is_active": true})
	if err != nil {
		t.Fatalf("Insert active: %v", err)
	}
	if on["is_active"] != true {
		t.Fatalf("is_active = %#v (%T)", on["is_active"], on["is_active"])
	}
	off, err := gw.Insert(ctx, "genres", Record{"name": "Drill", "color": "#7ED7FF", "is_active": false})
	if err != nil {
		t.Fatalf("Insert inactive: %v", err)
	}
	if off["is_active"] != false {
		t.Fatalf("is_active = %#v (%T)", off["is_active"], off["is_active"])
	}

	offID, _ := off["id"].(string)
	if offID == "" {
		t.Fatalf("Insert returned no id: %#v", off)
	}
	if _, err := gw.Update(ctx, "genres", offID, Record{"is_active": true}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := gw.Update(ctx, "genres", offID, Record{"is_active": false}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	active, err := gw.FindMany(ctx, "genres", Filter{Eq("is_active", true)}, Sort{Field: "name"})
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	if len(active) != 1 || active[0]["name"] != "Trap" {
		t.Fatalf("active = %#v", active)
	}
	all, err := gw.FindMany(ctx, "genres", nil, Sort{Field: "name"})
	if err != nil {
		t.Fatalf("FindMany all: %v", err)
	}
	if len(all) != 2 || all[0]["name"] != "Drill" || all[0]["is_active"] != false {
		t.Fatalf("all = %#v", all)
	}
}
