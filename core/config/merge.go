package config

import "reflect"

// merge overlays src onto dst field by field. A scalar field in src
// overrides dst only when it is non-zero, so an overlay built from a partial
// YAML file touches exactly the keys the file mentions. Booleans follow the
// same rule: an explicit false in the file cannot be told apart from an
// absent key, which is why every toggle defaults to false.
func merge(dst, src *Config) {
	mergeValues(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem())
}

func mergeValues(dst, src reflect.Value) {
	if !dst.CanSet() {
		return
	}
	switch dst.Kind() {
	case reflect.Struct:
		for i := 0; i < dst.NumField(); i++ {
			mergeValues(dst.Field(i), src.Field(i))
		}
	case reflect.Slice, reflect.Map:
		if src.Len() > 0 {
			dst.Set(src)
		}
	default:
		if !src.IsZero() {
			dst.Set(src)
		}
	}
}
