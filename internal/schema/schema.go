package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/model"
)

// FieldType enumerates the value types an option descriptor can declare.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInt      FieldType = "int"
	TypeBool     FieldType = "bool"
	TypeDuration FieldType = "duration"
	TypeEnum     FieldType = "enum"
	TypeList     FieldType = "list"
)

// Field describes one recognized option: its dotted path, type, default,
// and, for enums and lists, the allowed values or element type.
type Field struct {
	Path     string
	Type     FieldType
	Required bool
	Default  interface{} // nil means no default
	Enum     []string    // allowed values for TypeEnum
	Elem     FieldType   // element type for TypeList (TypeString or TypeInt)
	Doc      string
}

// Constraint is a named cross-field predicate evaluated after per-field
// validation. Check returns true when the constraint is satisfied.
type Constraint struct {
	Name    string
	Message string
	Check   func(opts Options) bool
}

// Schema holds the ordered option descriptors and constraints for one
// service kind. Field order is declaration order; renderers rely on it for
// deterministic output.
type Schema struct {
	Kind        model.ServiceKind
	Fields      []Field
	Constraints []Constraint

	fieldIndex map[string]int
}

// New builds a schema, indexing fields by path.
func New(kind model.ServiceKind, fields []Field, constraints []Constraint) *Schema {
	s := &Schema{
		Kind:        kind,
		Fields:      fields,
		Constraints: constraints,
		fieldIndex:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		s.fieldIndex[f.Path] = i
	}
	return s
}

// Field looks up a descriptor by dotted path.
func (s *Schema) Field(path string) (Field, bool) {
	i, ok := s.fieldIndex[path]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// covers reports whether path is a declared option or a section prefix of
// one, e.g. "acme" covers "acme.email".
func (s *Schema) covers(path string) bool {
	if _, ok := s.fieldIndex[path]; ok {
		return true
	}
	prefix := path + "."
	for _, f := range s.Fields {
		if strings.HasPrefix(f.Path, prefix) {
			return true
		}
	}
	return false
}

// Options is a validated, immutable option set for one service kind.
// Values are keyed by dotted path and are only produced by Validate.
type Options struct {
	kind   model.ServiceKind
	values map[string]interface{}
}

// Kind returns the service kind the options were validated for.
func (o Options) Kind() model.ServiceKind {
	return o.kind
}

// Has reports whether a value is present for the path (set or defaulted).
func (o Options) Has(path string) bool {
	_, ok := o.values[path]
	return ok
}

// String returns the string value at path, or "" when absent.
func (o Options) String(path string) string {
	v, _ := o.values[path].(string)
	return v
}

// Int returns the int value at path, or 0 when absent.
func (o Options) Int(path string) int {
	v, _ := o.values[path].(int)
	return v
}

// Bool returns the bool value at path, or false when absent.
func (o Options) Bool(path string) bool {
	v, _ := o.values[path].(bool)
	return v
}

// Duration returns the duration value at path, or 0 when absent.
func (o Options) Duration(path string) time.Duration {
	v, _ := o.values[path].(time.Duration)
	return v
}

// StringList returns the string list at path, or nil when absent.
func (o Options) StringList(path string) []string {
	v, _ := o.values[path].([]string)
	return v
}

// IntList returns the int list at path, or nil when absent.
func (o Options) IntList(path string) []int {
	v, _ := o.values[path].([]int)
	return v
}

// Paths returns the set paths in schema declaration order. Paths outside
// the schema cannot occur; Validate fails closed on unknown keys.
func (o Options) Paths(s *Schema) []string {
	var paths []string
	for _, f := range s.Fields {
		if o.Has(f.Path) {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// Flatten collapses a nested raw option tree into dotted paths. Keys that
// already contain dots are kept literal; nested maps recurse. List values
// never recurse: a list is a leaf.
func Flatten(raw map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{}, len(raw))
	flattenInto(flat, "", raw)
	return flat
}

func flattenInto(flat map[string]interface{}, prefix string, raw map[string]interface{}) {
	for key, value := range raw {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch nested := value.(type) {
		case map[string]interface{}:
			flattenInto(flat, path, nested)
		case map[interface{}]interface{}:
			// yaml.v2-style decoding; normalize keys to strings.
			converted := make(map[string]interface{}, len(nested))
			for k, v := range nested {
				converted[fmt.Sprintf("%v", k)] = v
			}
			flattenInto(flat, path, converted)
		default:
			flat[path] = value
		}
	}
}

// Resolve applies overrides on top of base exactly once, producing one
// final raw option set. Both inputs may be nested or dotted; the result is
// dotted. Neither input is mutated.
func Resolve(base, overrides map[string]interface{}) map[string]interface{} {
	resolved := make(map[string]interface{})
	for path, value := range Flatten(base) {
		resolved[path] = value
	}
	for path, value := range Flatten(overrides) {
		resolved[path] = value
	}
	return resolved
}

// Validate checks raw options against the schema: unknown keys fail closed,
// values are coerced per descriptor, defaults fill omitted keys, required
// keys without a value fail, and cross-field constraints run last. Pure:
// no side effects, inputs are not mutated.
func (s *Schema) Validate(raw map[string]interface{}) (Options, error) {
	flat := Flatten(raw)

	// An explicit null means unset: the key falls through to the default,
	// required, and constraint checks. A nulled section unsets everything
	// under its prefix. Nulls on keys outside the schema still fail closed.
	for path, value := range flat {
		if value == nil && s.covers(path) {
			delete(flat, path)
		}
	}

	values := make(map[string]interface{}, len(s.Fields))

	// Unknown keys first, reported deterministically.
	var unknown []string
	for path := range flat {
		if _, ok := s.fieldIndex[path]; !ok {
			unknown = append(unknown, path)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Options{}, errors.NewUnknownOptionError(
			fmt.Sprintf("unknown option %q for kind %s", unknown[0], s.Kind), nil,
		).WithContext("option", unknown[0]).WithContext("kind", string(s.Kind))
	}

	for _, field := range s.Fields {
		rawValue, present := flat[field.Path]
		if !present {
			if field.Default != nil {
				values[field.Path] = field.Default
				continue
			}
			if field.Required {
				return Options{}, errors.NewMissingRequiredOptionError(
					fmt.Sprintf("option %q is required for kind %s", field.Path, s.Kind), nil,
				).WithContext("option", field.Path).WithContext("kind", string(s.Kind))
			}
			continue
		}

		coerced, err := coerce(field, rawValue)
		if err != nil {
			return Options{}, err
		}
		values[field.Path] = coerced
	}

	opts := Options{kind: s.Kind, values: values}

	for _, c := range s.Constraints {
		if !c.Check(opts) {
			return Options{}, errors.NewConstraintViolationError(
				fmt.Sprintf("constraint %q violated for kind %s: %s", c.Name, s.Kind, c.Message), nil,
			).WithContext("constraint", c.Name).WithContext("kind", string(s.Kind))
		}
	}

	return opts, nil
}

func coerce(field Field, raw interface{}) (interface{}, error) {
	switch field.Type {
	case TypeString:
		v, ok := raw.(string)
		if !ok {
			return nil, typeMismatch(field.Path, "string", raw)
		}
		return v, nil

	case TypeInt:
		return coerceInt(field.Path, raw)

	case TypeBool:
		v, ok := raw.(bool)
		if !ok {
			return nil, typeMismatch(field.Path, "bool", raw)
		}
		return v, nil

	case TypeDuration:
		switch v := raw.(type) {
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, errors.NewTypeMismatchError(
					fmt.Sprintf("option %q expects a duration, got %q", field.Path, v), err,
				).WithContext("option", field.Path)
			}
			return d, nil
		case time.Duration:
			return v, nil
		default:
			return nil, typeMismatch(field.Path, "duration", raw)
		}

	case TypeEnum:
		v, ok := raw.(string)
		if !ok {
			return nil, typeMismatch(field.Path, "string (enum)", raw)
		}
		for _, allowed := range field.Enum {
			if v == allowed {
				return v, nil
			}
		}
		return nil, errors.NewInvalidEnumValueError(
			fmt.Sprintf("option %q has invalid value %q, allowed: %s",
				field.Path, v, strings.Join(field.Enum, ", ")), nil,
		).WithContext("option", field.Path).WithContext("value", v)

	case TypeList:
		return coerceList(field, raw)

	default:
		return nil, errors.NewInternalError(
			fmt.Sprintf("unhandled descriptor type %q for option %q", field.Type, field.Path), nil)
	}
}

func coerceInt(path string, raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		// YAML decoders produce float64 for some numeric forms; accept only
		// integral values.
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, typeMismatch(path, "int", raw)
}

func coerceList(field Field, raw interface{}) (interface{}, error) {
	items, ok := raw.([]interface{})
	if !ok {
		// Allow pre-typed slices from programmatic callers.
		switch v := raw.(type) {
		case []string:
			if field.Elem == TypeString {
				return append([]string(nil), v...), nil
			}
		case []int:
			if field.Elem == TypeInt {
				return append([]int(nil), v...), nil
			}
		}
		return nil, typeMismatch(field.Path, "list", raw)
	}

	switch field.Elem {
	case TypeInt:
		out := make([]int, 0, len(items))
		for i, item := range items {
			n, err := coerceInt(fmt.Sprintf("%s[%d]", field.Path, i), item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		out := make([]string, 0, len(items))
		for i, item := range items {
			str, ok := item.(string)
			if !ok {
				return nil, typeMismatch(fmt.Sprintf("%s[%d]", field.Path, i), "string", item)
			}
			out = append(out, str)
		}
		return out, nil
	}
}

func typeMismatch(path, expected string, actual interface{}) error {
	return errors.NewTypeMismatchError(
		fmt.Sprintf("option %q expects %s, got %T", path, expected, actual), nil,
	).WithContext("option", path).WithContext("expected", expected)
}
