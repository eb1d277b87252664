package worker

import (
    "reflect"
)

// normalize converts values into the shapes every body codec accepts:
// []any, map[string]any, int64, uint64, float64, string, bool, []byte, nil.
func normalize(v any) any {
    switch x := v.(type) {
    case nil, string, bool, float64, int64, uint64, []byte:
        return x
    case int:
        return int64(x)
    case []any:
        out := make([]any, len(x))
        for i, e := range x { out[i] = normalize(e) }
        return out
    case map[string]any:
        out := make(map[string]any, len(x))
        for k, e := range x { out[k] = normalize(e) }
        return out
    }
    rv := reflect.ValueOf(v)
    switch rv.Kind() {
    case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
        return rv.Int()
    case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
        return rv.Uint()
    case reflect.Float32, reflect.Float64:
        return rv.Float()
    case reflect.String:
        return rv.String()
    case reflect.Bool:
        return rv.Bool()
    case reflect.Slice, reflect.Array:
        out := make([]any, rv.Len())
        for i := range out { out[i] = normalize(rv.Index(i).Interface()) }
        return out
    case reflect.Map:
        if rv.Type().Key().Kind() != reflect.String { return v }
        out := make(map[string]any, rv.Len())
        iter := rv.MapRange()
        for iter.Next() { out[iter.Key().String()] = normalize(iter.Value().Interface()) }
        return out
    case reflect.Pointer, reflect.Interface:
        if rv.IsNil() { return nil }
        return normalize(rv.Elem().Interface())
    }
    return v
}
