package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// gormGateway stores each resource in its own table. Rows are read into maps
// and normalized by the table's Schema.
type gormGateway struct {
	db      *gorm.DB
	schemas schemaSet
}

// NewGormGateway creates a Gateway over db (MySQL or SQLite). Only tables
// described by schemas are reachable.
func NewGormGateway(db *gorm.DB, schemas ...Schema) Gateway {
	return &gormGateway{db: db, schemas: newSchemaSet(schemas)}
}

func (g *gormGateway) scoped(ctx context.Context, table string, f Filter, sorts []Sort) *gorm.DB {
	tx := g.db.WithContext(ctx).Table(table)
	if exprs := gormConditions(f); len(exprs) > 0 {
		tx = tx.Clauses(clause.Where{Exprs: exprs})
	}
	for _, s := range sorts {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Field}, Desc: s.Desc})
	}
	return tx
}

func gormConditions(f Filter) []clause.Expression {
	exprs := make([]clause.Expression, 0, len(f))
	for _, c := range f {
		col := clause.Column{Name: c.Field}
		switch c.Op {
		case OpEq:
			exprs = append(exprs, clause.Eq{Column: col, Value: c.Value})
		case OpNe:
			exprs = append(exprs, clause.Neq{Column: col, Value: c.Value})
		case OpEqFold:
			exprs = append(exprs, clause.Expr{SQL: "LOWER(?) = LOWER(?)", Vars: []interface{}{col, c.Value}})
		case OpNotEmpty:
			exprs = append(exprs, clause.Expr{SQL: "? IS NOT NULL AND ? <> ''", Vars: []interface{}{col, col}})
		}
	}
	return exprs
}

func (g *gormGateway) FindOne(ctx context.Context, table string, f Filter) (Record, error) {
	sc, err := g.schemas.check(table, f, nil)
	if err != nil {
		return nil, err
	}
	var rows []map[string]interface{}
	if err := g.scoped(ctx, table, f, nil).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find one in %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return decodeRecord(sc, rows[0])
}

func (g *gormGateway) FindMany(ctx context.Context, table string, f Filter, sort ...Sort) ([]Record, error) {
	sc, err := g.schemas.check(table, f, sort)
	if err != nil {
		return nil, err
	}
	var rows []map[string]interface{}
	if err := g.scoped(ctx, table, f, sort).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find many in %s: %w", table, err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeRecord(sc, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (g *gormGateway) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	sc, err := g.schemas.lookup(table)
	if err != nil {
		return nil, err
	}
	if err := g.schemas.checkRecord(sc, rec); err != nil {
		return nil, err
	}
	row, err := encodeRow(sc, rec)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	row[FieldID] = id
	now := time.Now().UTC()
	if _, ok := row[FieldCreatedAt]; !ok {
		row[FieldCreatedAt] = now
	}
	if _, ok := row[FieldUpdatedAt]; !ok {
		row[FieldUpdatedAt] = now
	}

	if err := g.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	return g.FindOne(ctx, table, ByID(id))
}

func (g *gormGateway) Update(ctx context.Context, table, id string, patch Record) (Record, error) {
	sc, err := g.schemas.lookup(table)
	if err != nil {
		return nil, err
	}
	if err := g.schemas.checkRecord(sc, patch); err != nil {
		return nil, err
	}
	delete(patch, FieldID)
	if _, err := g.FindOne(ctx, table, ByID(id)); err != nil {
		return nil, err
	}
	row, err := encodeRow(sc, patch)
	if err != nil {
		return nil, err
	}
	if len(row) > 0 {
		// RowsAffected is not checked: MySQL reports 0 when the values are unchanged.
		err := g.db.WithContext(ctx).Table(table).
			Clauses(clause.Where{Exprs: []clause.Expression{clause.Eq{Column: clause.Column{Name: FieldID}, Value: id}}}).
			Updates(row).Error
		if err != nil {
			if isDuplicate(err) {
				return nil, ErrDuplicate
			}
			return nil, fmt.Errorf("update %s %s: %w", table, id, err)
		}
	}
	return g.FindOne(ctx, table, ByID(id))
}

func (g *gormGateway) Delete(ctx context.Context, table, id string) error {
	if _, err := g.schemas.lookup(table); err != nil {
		return err
	}
	res := g.db.WithContext(ctx).Exec("DELETE FROM ? WHERE ? = ?",
		clause.Table{Name: table}, clause.Column{Name: FieldID}, id)
	if res.Error != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *gormGateway) Count(ctx context.Context, table string, f Filter) (int64, error) {
	if _, err := g.schemas.check(table, f, nil); err != nil {
		return 0, err
	}
	var n int64
	if err := g.scoped(ctx, table, f, nil).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// encodeRow prepares values for a SQL column: lists and maps become JSON.
func encodeRow(sc Schema, rec Record) (map[string]interface{}, error) {
	row := make(map[string]interface{}, len(rec))
	for col, v := range rec {
		kind, _ := sc.KindOf(col)
		switch kind {
		case KindList, KindMap:
			if v == nil {
				row[col] = nil
				continue
			}
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode %s.%s: %w", sc.Table, col, err)
			}
			row[col] = datatypes.JSON(b)
		case KindTime:
			if t, ok := v.(time.Time); ok {
				row[col] = t.UTC()
				continue
			}
			row[col] = v
		default:
			row[col] = v
		}
	}
	return row, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
