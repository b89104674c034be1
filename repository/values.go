package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// decodeValue converts whatever a driver handed back into the canonical Go
// type for kind: string, int64, float64, bool, []any, map[string]any or
// time.Time. nil stays nil.
func decodeValue(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if p, ok := v.(*any); ok {
		if p == nil {
			return nil, nil
		}
		return decodeValue(kind, *p)
	}
	switch t := v.(type) {
	case sql.NullString:
		if !t.Valid {
			return nil, nil
		}
		v = t.String
	case sql.RawBytes:
		v = []byte(t)
	}

	switch kind {
	case KindString:
		switch t := v.(type) {
		case string:
			return t, nil
		case []byte:
			return string(t), nil
		default:
			return fmt.Sprint(t), nil
		}
	case KindInt:
		switch t := v.(type) {
		case int64:
			return t, nil
		case int:
			return int64(t), nil
		case int32:
			return int64(t), nil
		case float64:
			return int64(t), nil
		case []byte:
			return strconv.ParseInt(string(t), 10, 64)
		case string:
			return strconv.ParseInt(t, 10, 64)
		}
	case KindFloat:
		switch t := v.(type) {
		case float64:
			return t, nil
		case float32:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case int32:
			return float64(t), nil
		case int:
			return float64(t), nil
		case []byte:
			return strconv.ParseFloat(string(t), 64)
		case string:
			return strconv.ParseFloat(t, 64)
		}
	case KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case int64:
			return t != 0, nil
		case int32:
			return t != 0, nil
		case int:
			return t != 0, nil
		case float64:
			// SQLite declares gorm bools as numeric.
			return t != 0, nil
		case float32:
			return t != 0, nil
		case []byte:
			return strconv.ParseBool(string(t))
		case string:
			return strconv.ParseBool(t)
		}
	case KindList:
		switch t := v.(type) {
		case []any:
			return t, nil
		case []string:
			out := make([]any, len(t))
			for i, s := range t {
				out[i] = s
			}
			return out, nil
		case []byte:
			return decodeJSONList(t)
		case string:
			return decodeJSONList([]byte(t))
		}
	case KindMap:
		switch t := v.(type) {
		case map[string]any:
			return t, nil
		case []byte:
			return decodeJSONMap(t)
		case string:
			return decodeJSONMap([]byte(t))
		}
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			return parseTime(t)
		case []byte:
			return parseTime(string(t))
		}
	}
	return nil, fmt.Errorf("cannot decode %T as kind %d", v, kind)
}

func decodeJSONList(b []byte) (any, error) {
	if len(b) == 0 {
		return []any{}, nil
	}
	var out []any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode list column: %w", err)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func decodeJSONMap(b []byte) (any, error) {
	if len(b) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode map column: %w", err)
	}
	return out, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// decodeRecord normalizes every known column of row. Unknown columns are dropped.
func decodeRecord(sc Schema, row map[string]any) (Record, error) {
	out := make(Record, len(row))
	for col, raw := range row {
		kind, ok := sc.KindOf(col)
		if !ok {
			continue
		}
		v, err := decodeValue(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", sc.Table, col, err)
		}
		out[col] = v
	}
	return out, nil
}
