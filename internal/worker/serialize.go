package worker

import (
	"reflect"
	"regexp"
	"time"
)

// DefaultMaxDepth is the projection depth cap spec.md §4.6 names.
const DefaultMaxDepth = 5

// Project walks v and reduces it to a plain value safe to cross the
// worker boundary: primitives, time.Time, *regexp.Regexp and typed
// byte slices pass through unchanged; errors become plain records;
// every other struct, map, slice or array is walked up to maxDepth,
// own and inherited non-function fields included, functions dropped.
// Walking stops at maxDepth, and a pointer already visited during this
// walk projects as nil, so cycles are not chased forever; a pointer
// reached a second time through a shared (non-cyclic) reference also
// projects as nil.
func Project(v any, maxDepth int) any {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return project(reflect.ValueOf(v), maxDepth, map[uintptr]bool{})
}

func project(rv reflect.Value, depth int, seen map[uintptr]bool) any {
	if !rv.IsValid() {
		return nil
	}

	switch v := rv.Interface().(type) {
	case time.Time:
		return v
	case *regexp.Regexp:
		return v
	case []byte:
		return v
	case error:
		return errorRecord(v)
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Ptr {
			addr := rv.Pointer()
			if seen[addr] {
				return nil
			}
			if depth <= 0 {
				return nil
			}
			seen[addr] = true
			return project(rv.Elem(), depth-1, seen)
		}
		return project(rv.Elem(), depth, seen)

	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.Interface()

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil

	case reflect.Slice, reflect.Array:
		if depth <= 0 {
			return nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = project(rv.Index(i), depth-1, seen)
		}
		return out

	case reflect.Map:
		if depth <= 0 {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKeyString(iter.Key())] = project(iter.Value(), depth-1, seen)
		}
		return out

	case reflect.Struct:
		if depth <= 0 {
			return nil
		}
		t := rv.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" && !field.Anonymous {
				continue
			}
			fv := rv.Field(i)
			if fv.Kind() == reflect.Func {
				continue
			}
			out[field.Name] = project(fv, depth-1, seen)
		}
		return out

	default:
		return nil
	}
}

// errorRecord converts err to the plain {name, message} record
// spec.md §4.6 calls for, folding in any additional exported fields a
// concrete error type carries via project's own struct handling.
func errorRecord(err error) map[string]any {
	rv := reflect.ValueOf(err)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	rec := map[string]any{
		"name":    reflect.TypeOf(err).String(),
		"message": err.Error(),
	}
	if rv.Kind() == reflect.Struct {
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" || field.Anonymous {
				continue
			}
			fv := rv.Field(i)
			if fv.Kind() == reflect.Func {
				continue
			}
			rec[field.Name] = project(fv, DefaultMaxDepth, map[uintptr]bool{})
		}
	}
	return rec
}

func mapKeyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if s, ok := k.Interface().(interface{ String() string }); ok {
		return s.String()
	}
	return reflect.TypeOf(k.Interface()).Name()
}
