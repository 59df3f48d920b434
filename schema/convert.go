package schema

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

var (
	scannerType = reflect.TypeFor[sql.Scanner]()
	timeType    = reflect.TypeFor[time.Time]()
)

// timeLayouts are the textual forms drivers return for temporal columns.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Assign stores a driver value into a settable destination, converting
// between the representations drivers commonly return: []byte and string,
// integer widths, integer booleans and textual timestamps. A nil source
// zeroes the destination.
func Assign(dst reflect.Value, src any) error {
	if !dst.CanSet() {
		return fmt.Errorf("schema: cannot assign to %s", dst.Type())
	}
	if dst.CanAddr() && dst.Addr().Type().Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := Assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		if b, ok := src.([]byte); ok {
			// Drivers may reuse the buffer after Next.
			dst.Set(reflect.ValueOf(append([]byte(nil), b...)))
			return nil
		}
		dst.Set(sv)
		return nil
	}
	if b, ok := src.([]byte); ok {
		src = string(b)
		sv = reflect.ValueOf(src)
	}
	if dst.Type() == timeType {
		return assignTime(dst, src)
	}
	switch dst.Kind() {
	case reflect.String:
		switch v := src.(type) {
		case string:
			dst.SetString(v)
		case time.Time:
			dst.SetString(v.Format(time.RFC3339Nano))
		default:
			dst.SetString(fmt.Sprint(v))
		}
		return nil
	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			if s, ok := src.(string); ok {
				dst.SetBytes([]byte(s))
				return nil
			}
		}
	case reflect.Bool:
		switch v := src.(type) {
		case bool:
			dst.SetBool(v)
			return nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("schema: converting %q to bool: %w", v, err)
			}
			dst.SetBool(b)
			return nil
		}
		if sv.CanInt() {
			dst.SetBool(sv.Int() != 0)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if s, ok := src.(string); ok {
			i, err := strconv.ParseInt(s, 10, dst.Type().Bits())
			if err != nil {
				return fmt.Errorf("schema: converting %q to %s: %w", s, dst.Type(), err)
			}
			dst.SetInt(i)
			return nil
		}
		if sv.CanInt() || sv.CanUint() || sv.CanFloat() {
			dst.Set(sv.Convert(dst.Type()))
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if s, ok := src.(string); ok {
			u, err := strconv.ParseUint(s, 10, dst.Type().Bits())
			if err != nil {
				return fmt.Errorf("schema: converting %q to %s: %w", s, dst.Type(), err)
			}
			dst.SetUint(u)
			return nil
		}
		if sv.CanInt() || sv.CanUint() || sv.CanFloat() {
			dst.Set(sv.Convert(dst.Type()))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if s, ok := src.(string); ok {
			f, err := strconv.ParseFloat(s, dst.Type().Bits())
			if err != nil {
				return fmt.Errorf("schema: converting %q to %s: %w", s, dst.Type(), err)
			}
			dst.SetFloat(f)
			return nil
		}
		if sv.CanInt() || sv.CanUint() || sv.CanFloat() {
			dst.Set(sv.Convert(dst.Type()))
			return nil
		}
	}
	if sv.Type().ConvertibleTo(dst.Type()) && sv.Kind() == dst.Kind() {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("schema: cannot convert %T to %s", src, dst.Type())
}

func assignTime(dst reflect.Value, src any) error {
	switch v := src.(type) {
	case time.Time:
		dst.Set(reflect.ValueOf(v))
		return nil
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				dst.Set(reflect.ValueOf(t))
				return nil
			}
		}
		return fmt.Errorf("schema: cannot parse %q as time", v)
	case int64:
		dst.Set(reflect.ValueOf(time.Unix(v, 0).UTC()))
		return nil
	}
	return fmt.Errorf("schema: cannot convert %T to time.Time", src)
}
