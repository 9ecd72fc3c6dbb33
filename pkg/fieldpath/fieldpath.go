package fieldpath

import (
	"fmt"
	"reflect"
	"strings"
)

// NotFoundError reports that a path segment could not be resolved.
type NotFoundError struct {
	// Path is the dotted path up to and including the failing segment.
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: not found", e.Path)
}

// TypeError reports that a resolved value does not have the requested type.
type TypeError struct {
	Path string
	Want string
	Got  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Path, e.Want, e.Got)
}

// Resolve walks obj along the dotted path and returns the value it ends at.
// Struct fields are matched by exact name first, then case-insensitively.
// Map lookups require string-kind keys. A nil pointer or missing segment
// yields a *NotFoundError.
func Resolve(obj any, path string) (any, error) {
	current := reflect.ValueOf(obj)
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		next, ok := descend(current, segment)
		if !ok {
			return nil, &NotFoundError{Path: strings.Join(segments[:i+1], ".")}
		}
		current = next
	}
	if !current.IsValid() {
		return nil, nil
	}
	return current.Interface(), nil
}

func descend(v reflect.Value, segment string) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return reflect.Value{}, false
	}

	switch v.Kind() {
	case reflect.Struct:
		if sf, ok := v.Type().FieldByName(segment); ok && sf.PkgPath == "" {
			return v.FieldByIndex(sf.Index), true
		}
		sf, ok := v.Type().FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, segment)
		})
		if ok && sf.PkgPath == "" {
			return v.FieldByIndex(sf.Index), true
		}
		return reflect.Value{}, false
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		key := reflect.ValueOf(segment).Convert(v.Type().Key())
		elem := v.MapIndex(key)
		if !elem.IsValid() {
			return reflect.Value{}, false
		}
		return elem, true
	default:
		return reflect.Value{}, false
	}
}

// Required resolves the path and asserts the result to type T.
func Required[T any](obj any, path string) (T, error) {
	var zero T
	raw, err := Resolve(obj, path)
	if err != nil {
		return zero, err
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, &TypeError{
			Path: path,
			Want: fmt.Sprintf("%T", zero),
			Got:  fmt.Sprintf("%T", raw),
		}
	}
	return typed, nil
}

// Optional resolves the path and asserts the result to type T. A missing
// field or a type mismatch is reported as absence, not as an error.
func Optional[T any](obj any, path string) (T, bool) {
	typed, err := Required[T](obj, path)
	if err != nil {
		var zero T
		return zero, false
	}
	return typed, true
}
