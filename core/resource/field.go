package resource

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"beatmarket/core/apperr"
	"beatmarket/core/naming"
	"beatmarket/repository"

	"github.com/go-playground/validator/v10"
)

// Field declares one attribute of a resource.
type Field struct {
	Name  string // snake_case storage name
	Label string // human name for messages; defaults to the camelCase name
	Kind  repository.Kind

	Required bool
	Trim     bool
	Lower    bool
	// EmptyAsNull treats "" as absent. Optional unique keys need this so
	// several records can omit them.
	EmptyAsNull bool

	Default     any
	DefaultFunc func(rec repository.Record) any
	Validators  []Validator

	Hidden   bool // never returned to clients
	Virtual  bool // accepted on input but not stored; a Prepare hook consumes it
	ReadOnly bool // never accepted from input
}

func (f *Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return naming.CamelKey(f.Name)
}

// Validator checks a coerced value. label names the field in the message.
type Validator func(label string, v any) error

var validate = validator.New()

// tagged runs a validator tag against v and reports failures with message.
func tagged(tag, message string) Validator {
	return func(label string, v any) error {
		if err := validate.Var(v, tag); err != nil {
			return apperr.Validation(message, label)
		}
		return nil
	}
}

func IntRange(min, max int64) Validator {
	return tagged(fmt.Sprintf("min=%d,max=%d", min, max),
		fmt.Sprintf("%%s must be between %d and %d", min, max))
}

// NonNegative also rejects NaN, which fails every comparison.
func NonNegative() Validator {
	return tagged("min=0", "%s must be a non-negative number")
}

// OneOf accepts exactly one of values, none of which may contain a space.
func OneOf(values ...string) Validator {
	return tagged("oneof="+strings.Join(values, " "),
		"%s must be one of "+strings.Join(values, ", "))
}

func HexColor() Validator {
	return tagged("hexcolor", "%s must be a hex color such as #7ED7FF")
}

func Email() Validator {
	return tagged("email", "%s must be a valid email address")
}

// coerce converts a decoded JSON or form value to the field's kind.
// present is false when the value counts as absent.
func (f *Field) coerce(v any) (out any, present bool, err error) {
	if v == nil {
		return nil, false, nil
	}
	switch f.Kind {
	case repository.KindString:
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case int64:
			s = strconv.FormatInt(t, 10)
		case int:
			s = strconv.Itoa(t)
		case bool:
			s = strconv.FormatBool(t)
		default:
			return nil, false, apperr.Validation("%s must be a string", f.label())
		}
		if f.Trim {
			s = strings.TrimSpace(s)
		}
		if f.Lower {
			s = strings.ToLower(s)
		}
		if s == "" && f.EmptyAsNull {
			return nil, false, nil
		}
		return s, true, nil

	case repository.KindInt:
		switch t := v.(type) {
		case float64:
			if t != math.Trunc(t) {
				return nil, false, apperr.Validation("%s must be a whole number", f.label())
			}
			return int64(t), true, nil
		case int64:
			return t, true, nil
		case int:
			return int64(t), true, nil
		case json.Number:
			n, err := t.Int64()
			if err != nil {
				return nil, false, apperr.Validation("%s must be a whole number", f.label())
			}
			return n, true, nil
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				return nil, false, nil
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, false, apperr.Validation("%s must be a whole number", f.label())
			}
			return n, true, nil
		}
		return nil, false, apperr.Validation("%s must be a whole number", f.label())

	case repository.KindFloat:
		switch t := v.(type) {
		case float64:
			return t, true, nil
		case int64:
			return float64(t), true, nil
		case int:
			return float64(t), true, nil
		case json.Number:
			n, err := t.Float64()
			if err != nil {
				return nil, false, apperr.Validation("%s must be a number", f.label())
			}
			return n, true, nil
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				return nil, false, nil
			}
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, false, apperr.Validation("%s must be a number", f.label())
			}
			return n, true, nil
		}
		return nil, false, apperr.Validation("%s must be a number", f.label())

	case repository.KindBool:
		switch t := v.(type) {
		case bool:
			return t, true, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err != nil {
				return nil, false, apperr.Validation("%s must be true or false", f.label())
			}
			return b, true, nil
		}
		return nil, false, apperr.Validation("%s must be true or false", f.label())

	case repository.KindList:
		return coerceList(f, v)

	case repository.KindMap:
		switch t := v.(type) {
		case map[string]any:
			return t, true, nil
		case string:
			var m map[string]any
			if err := json.Unmarshal([]byte(t), &m); err != nil {
				return nil, false, apperr.Validation("%s must be an object", f.label())
			}
			return m, true, nil
		}
		return nil, false, apperr.Validation("%s must be an object", f.label())
	}
	return nil, false, fmt.Errorf("field %s has unsupported kind %d", f.Name, f.Kind)
}

// coerceList accepts a list of strings or a single string. A single string
// becomes a one-element list; a JSON array string is decoded.
func coerceList(f *Field, v any) (any, bool, error) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "[") {
			if err := json.Unmarshal([]byte(s), &items); err != nil {
				return nil, false, apperr.Validation("%s must be a list of strings", f.label())
			}
		} else if s != "" {
			items = []any{s}
		}
	default:
		return nil, false, apperr.Validation("%s must be a list of strings", f.label())
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false, apperr.Validation("%s must be a list of strings", f.label())
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, true, nil
}

// isBlank reports whether v fails a required check.
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// cloneDefault copies list and map defaults so records never share them.
func cloneDefault(v any) any {
	switch t := v.(type) {
	case []any:
		return append([]any{}, t...)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out
	}
	return v
}
