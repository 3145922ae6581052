package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrRequired    = errors.New("is required")
	ErrInvalidType = errors.New("invalid type")
)

type Validator interface {
	Validate(value interface{}) error
}

type StringFunc func(s string) error

type String struct {
	Optional bool
	// UnsetZero treats an empty string like an unset value
	UnsetZero  bool
	MinLen     int
	MaxLen     int
	Regex      *regexp.Regexp
	Validators []StringFunc
}

func (v *String) Validate(value interface{}) error {
	var s *string
	switch t := value.(type) {
	case *string:
		s = t
	case string:
		s = &t
	default:
		return ErrInvalidType
	}

	if s == nil || (v.UnsetZero && *s == "") {
		if v.Optional {
			return nil
		}
		return ErrRequired
	}

	l := utf8.RuneCountInString(*s)
	if v.MinLen > 0 && l < v.MinLen {
		return fmt.Errorf("must have at least %d characters", v.MinLen)
	}
	if v.MaxLen > 0 && l > v.MaxLen {
		return fmt.Errorf("must have at most %d characters", v.MaxLen)
	}

	if v.Regex != nil && !v.Regex.MatchString(*s) {
		return fmt.Errorf("must match %s", v.Regex.String())
	}

	for _, fn := range v.Validators {
		if err := fn(*s); err != nil {
			return err
		}
	}

	return nil
}

type UInt64 struct {
	Optional bool
	Min      *uint64
	Max      *uint64
}

func (v *UInt64) Validate(value interface{}) error {
	var i *uint64
	switch t := value.(type) {
	case *uint64:
		i = t
	case uint64:
		i = &t
	default:
		return ErrInvalidType
	}

	if i == nil {
		if v.Optional {
			return nil
		}
		return ErrRequired
	}

	if v.Min != nil && *i < *v.Min {
		return fmt.Errorf("must be at least %d", *v.Min)
	}
	if v.Max != nil && *i > *v.Max {
		return fmt.Errorf("must be at most %d", *v.Max)
	}

	return nil
}

type UInt32 struct {
	Optional   bool
	Validators []func(uint32) error
}

func (v *UInt32) Validate(value interface{}) error {
	var i *uint32
	switch t := value.(type) {
	case *uint32:
		i = t
	case uint32:
		i = &t
	default:
		return ErrInvalidType
	}

	if i == nil {
		if v.Optional {
			return nil
		}
		return ErrRequired
	}

	for _, fn := range v.Validators {
		if err := fn(*i); err != nil {
			return err
		}
	}

	return nil
}

type Bool struct {
	Optional bool
}

func (v *Bool) Validate(value interface{}) error {
	switch t := value.(type) {
	case *bool:
		if t == nil && !v.Optional {
			return ErrRequired
		}
		return nil
	case bool:
		return nil
	default:
		return ErrInvalidType
	}
}

type Slice struct {
	Optional  bool
	MinLen    int
	MaxLen    int
	Validator Validator
}

func (v *Slice) Validate(value interface{}) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return ErrInvalidType
	}

	if rv.IsNil() || rv.Len() == 0 {
		if v.Optional {
			return nil
		}
		if v.MinLen > 0 {
			return ErrRequired
		}
	}

	if v.MinLen > 0 && rv.Len() < v.MinLen {
		return fmt.Errorf("must have at least %d items", v.MinLen)
	}
	if v.MaxLen > 0 && rv.Len() > v.MaxLen {
		return fmt.Errorf("must have at most %d items", v.MaxLen)
	}

	if v.Validator == nil {
		return nil
	}

	for i := 0; i < rv.Len(); i++ {
		if err := v.Validator.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("[%d] %w", i, err)
		}
	}

	return nil
}

// Form validates the fields of a struct. Keys are json tag names, falling back to schema tag names
// and finally to the Go field name.
type Form struct {
	Optional   bool
	validators map[string]Validator
}

func MustForm(validators map[string]Validator) *Form {
	for k, v := range validators {
		if v == nil {
			panic(fmt.Sprintf("validator for %s is nil", k))
		}
	}
	return &Form{
		validators: validators,
	}
}

func (v *Form) Validate(value interface{}) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			if v.Optional {
				return nil
			}
			return ErrRequired
		}
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return ErrInvalidType
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		key := fieldKey(field)

		fv, ok := v.validators[key]
		if !ok {
			continue
		}

		if err := fv.Validate(rv.Field(i).Interface()); err != nil {
			return fmt.Errorf("%s %w", key, err)
		}
	}

	return nil
}

func fieldKey(field reflect.StructField) string {
	for _, tag := range []string{"json", "schema"} {
		name := strings.Split(field.Tag.Get(tag), ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}
