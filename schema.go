package drift

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType describes the declared type of a config field. Implementations
// form a small closed set of descriptors that CheckField interprets
// recursively, so composite types (optional maps of enums and so on) are
// checked all the way down.
type FieldType interface {
	// String describes the type for error messages.
	String() string
	// check reports the first value (possibly nested) that does not
	// satisfy the type. field is the dotted path used in the error.
	check(field string, value any) error
}

type primitiveType struct {
	name string
	ok   func(any) bool
}

func (t primitiveType) String() string { return t.name }

func (t primitiveType) check(field string, value any) error {
	if !t.ok(value) {
		return &InvalidFieldValueError{Field: field, Expected: t.name, Value: value}
	}

	return nil
}

// The primitive descriptors. Integers are matched across the widths YAML and
// TOML decoders produce.
var (
	TypeString = primitiveType{"string", func(v any) bool {
		_, ok := v.(string)
		return ok
	}}
	TypeInt = primitiveType{"integer", func(v any) bool {
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	}}
	TypeFloat = primitiveType{"float", func(v any) bool {
		switch v.(type) {
		case float32, float64:
			return true
		}
		return false
	}}
	TypeBool = primitiveType{"boolean", func(v any) bool {
		_, ok := v.(bool)
		return ok
	}}
)

type optionalType struct {
	elem FieldType
}

// Optional wraps a type so that nil is also a valid value.
func Optional(elem FieldType) FieldType {
	return optionalType{elem}
}

func (t optionalType) String() string {
	return fmt.Sprintf("optional %s", t.elem)
}

func (t optionalType) check(field string, value any) error {
	if value == nil {
		return nil
	}

	return t.elem.check(field, value)
}

type listType struct {
	elem FieldType
}

// ListOf describes a list whose elements all satisfy elem.
func ListOf(elem FieldType) FieldType {
	return listType{elem}
}

func (t listType) String() string {
	return fmt.Sprintf("list of %s", t.elem)
}

func (t listType) check(field string, value any) error {
	items, ok := value.([]any)

	if !ok {
		// Already-typed string slices show up when composing overrides
		// programmatically rather than from a decoded document.
		if ss, ok := value.([]string); ok {
			items = make([]any, len(ss))
			for i, s := range ss {
				items[i] = s
			}
		} else {
			return &InvalidFieldValueError{Field: field, Expected: t.String(), Value: value}
		}
	}

	for i, item := range items {
		if err := t.elem.check(fmt.Sprintf("%s[%d]", field, i), item); err != nil {
			return err
		}
	}

	return nil
}

type mapType struct {
	key FieldType
	val FieldType
}

// MapOf describes a mapping whose keys satisfy key and values satisfy val.
func MapOf(key, val FieldType) FieldType {
	return mapType{key, val}
}

func (t mapType) String() string {
	return fmt.Sprintf("mapping of %s to %s", t.key, t.val)
}

func (t mapType) check(field string, value any) error {
	entries := map[string]any{}

	switch m := value.(type) {
	case map[string]any:
		entries = m
	case map[string]int:
		for k, v := range m {
			entries[k] = v
		}
	case map[any]any:
		// yaml.v3 decodes nested mappings with non-string keys this way
		for k, v := range m {
			ks, ok := k.(string)

			if !ok {
				return &InvalidFieldValueError{Field: field + " key", Expected: t.key.String(), Value: k}
			}

			entries[ks] = v
		}
	default:
		return &InvalidFieldValueError{Field: field, Expected: t.String(), Value: value}
	}

	// Deterministic order so the first error is stable
	keys := make([]string, 0, len(entries))

	for k := range entries {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if err := t.key.check(field+" key", k); err != nil {
			return err
		}

		if err := t.val.check(fmt.Sprintf("%s[%s]", field, k), entries[k]); err != nil {
			return err
		}
	}

	return nil
}

type oneOfType struct {
	values []string
}

// OneOf describes a string restricted to an enumerated set.
func OneOf(values ...string) FieldType {
	return oneOfType{values}
}

func (t oneOfType) String() string {
	return fmt.Sprintf("one of [%s]", strings.Join(t.values, ", "))
}

func (t oneOfType) check(field string, value any) error {
	s, ok := value.(string)

	if !ok {
		return &InvalidFieldValueError{Field: field, Expected: "string", Value: value}
	}

	for _, v := range t.values {
		if s == v {
			return nil
		}
	}

	return &InvalidFieldValueError{Field: field, Expected: t.String(), Value: value}
}

// CheckField validates a single field value against its declared type.
func CheckField(field string, value any, t FieldType) error {
	return t.check(field, value)
}
