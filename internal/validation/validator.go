package validation

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Validator validates structs against `validate` tags. Supported rules:
// required, oneof=a b c, range=min:max. Pointer fields are validated
// only when set, which matches partial-update request types.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a struct
func (v *Validator) Validate(s interface{}) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validate expects a struct")
	}

	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		tag := fieldType.Tag.Get("validate")

		if tag == "" {
			continue
		}

		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				continue
			}
			field = field.Elem()
		}

		if field.Kind() == reflect.Struct {
			if err := v.Validate(field.Interface()); err != nil {
				return fmt.Errorf("%s: %w", fieldType.Name, err)
			}
			continue
		}

		if err := v.validateField(field, tag); err != nil {
			return fmt.Errorf("%s: %w", fieldType.Name, err)
		}
	}

	return nil
}

// validateField validates a single field
func (v *Validator) validateField(field reflect.Value, tag string) error {
	rules := strings.Split(tag, ",")

	for _, rule := range rules {
		parts := strings.SplitN(rule, "=", 2)
		ruleName := parts[0]

		switch ruleName {
		case "required":
			if field.IsZero() {
				return fmt.Errorf("field is required")
			}

		case "oneof":
			if len(parts) < 2 {
				continue
			}
			value := fmt.Sprint(field.Interface())
			allowed := strings.Fields(parts[1])
			ok := false
			for _, a := range allowed {
				if value == a {
					ok = true
					break
				}
			}
			if !ok {
				return fmt.Errorf("value %q not one of %s", value, strings.Join(allowed, ", "))
			}

		case "range":
			if len(parts) < 2 {
				continue
			}
			bounds := strings.SplitN(parts[1], ":", 2)
			if len(bounds) != 2 {
				continue
			}
			min, err1 := strconv.ParseInt(bounds[0], 10, 64)
			max, err2 := strconv.ParseInt(bounds[1], 10, 64)
			if err1 != nil || err2 != nil {
				continue
			}
			var n int64
			switch field.Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				n = field.Int()
			default:
				return fmt.Errorf("range rule on non-integer field")
			}
			if n < min || n > max {
				return fmt.Errorf("value %d out of range %d-%d", n, min, max)
			}
		}
	}

	return nil
}
