package goutil

import (
	"reflect"
)

func String(s string) *string {
	return &s
}

func Uint32(ui uint32) *uint32 {
	return &ui
}

func Uint64(ui uint64) *uint64 {
	return &ui
}

func Int(i int) *int {
	return &i
}

func Bool(b bool) *bool {
	return &b
}

func Uint64Value(ui *uint64) uint64 {
	if ui != nil {
		return *ui
	}
	return 0
}

func StringValue(s *string) string {
	if s != nil {
		return *s
	}
	return ""
}

func IsNil(i interface{}) bool {
	if i == nil {
		return true
	}
	switch reflect.TypeOf(i).Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Slice:
		return reflect.ValueOf(i).IsNil()
	default:
		return false
	}
}
