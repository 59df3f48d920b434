package condition

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Getter returns the value of a logical field for in-memory evaluation.
type Getter func(field string) (any, bool)

// truth is a SQL three-valued logic value.
type truth int8

const (
	unknown truth = iota - 1
	falsy
	truthy
)

func boolTruth(b bool) truth {
	if b {
		return truthy
	}
	return falsy
}

// Match evaluates n against the values returned by get, following SQL
// three-valued logic: comparisons with NULL are unknown and an unknown
// result at the root does not match. LIKE is case-sensitive.
func Match(n Node, get Getter) (bool, error) {
	t, err := eval(n, get)
	if err != nil {
		return false, err
	}
	return t == truthy, nil
}

func eval(n Node, get Getter) (truth, error) {
	switch n := n.(type) {
	case *Group:
		return evalGroup(n, get)
	case *Leaf:
		return evalLeaf(n, get)
	}
	return unknown, fmt.Errorf("condition: cannot evaluate %T", n)
}

func evalGroup(g *Group, get Getter) (truth, error) {
	if len(g.children) == 0 {
		return truthy, nil
	}
	result := truthy
	if g.conj == Or {
		result = falsy
	}
	for _, c := range g.children {
		t, err := eval(c, get)
		if err != nil {
			return unknown, err
		}
		switch {
		case g.conj == And && t == falsy:
			return falsy, nil
		case g.conj == Or && t == truthy:
			return truthy, nil
		case t == unknown:
			result = unknown
		}
	}
	return result, nil
}

func evalLeaf(l *Leaf, get Getter) (truth, error) {
	raw, ok := get(l.field)
	if !ok {
		return unknown, fmt.Errorf("condition: unknown field %q", l.field)
	}
	v, err := scalar(raw)
	if err != nil {
		return unknown, err
	}
	switch l.op {
	case IsNull:
		return boolTruth(v == nil), nil
	case IsNotNull:
		return boolTruth(v != nil), nil
	}
	if v == nil {
		return unknown, nil
	}
	switch l.op {
	case Like, NotLike:
		s, ok := v.(string)
		if !ok {
			return unknown, fmt.Errorf("condition: LIKE on non-string field %q (%T)", l.field, v)
		}
		m, err := like(l.values[0].(string), s)
		if err != nil {
			return unknown, err
		}
		return boolTruth(m == (l.op == Like)), nil
	case In, NotIn:
		result := falsy
		for _, want := range l.values {
			c, err := compareTo(v, want)
			if err != nil {
				return unknown, err
			}
			if c == 0 {
				result = truthy
				break
			}
		}
		if l.op == NotIn {
			result = boolTruth(result == falsy)
		}
		return result, nil
	case Between:
		lo, err := compareTo(v, l.values[0])
		if err != nil {
			return unknown, err
		}
		hi, err := compareTo(v, l.values[1])
		if err != nil {
			return unknown, err
		}
		return boolTruth(lo >= 0 && hi <= 0), nil
	}
	c, err := compareTo(v, l.values[0])
	if err != nil {
		return unknown, err
	}
	switch l.op {
	case Equal:
		return boolTruth(c == 0), nil
	case NotEqual:
		return boolTruth(c != 0), nil
	case LessThan:
		return boolTruth(c < 0), nil
	case LessThanOrEqual:
		return boolTruth(c <= 0), nil
	case GreaterThan:
		return boolTruth(c > 0), nil
	case GreaterThanOrEqual:
		return boolTruth(c >= 0), nil
	}
	return unknown, fmt.Errorf("condition: cannot evaluate operator %s", l.op)
}

func compareTo(a, b any) (int, error) {
	bv, err := scalar(b)
	if err != nil {
		return 0, err
	}
	if bv == nil {
		return 0, fmt.Errorf("condition: comparison with nil value")
	}
	return compare(a, bv)
}

// scalar unwraps pointers and driver.Valuer values and widens numbers to
// int64 or float64. A nil result stands for SQL NULL.
func scalar(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if valuer, ok := v.(driver.Valuer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		dv, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		v = dv
		if v == nil {
			return nil, nil
		}
	}
	switch v := v.(type) {
	case string, []byte, time.Time, int64, float64:
		return v, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return scalar(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return scalar(rv.Bool())
	}
	return v, nil
}

func compare(a, b any) (int, error) {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, y), nil
		case float64:
			return cmpOrdered(float64(x), y), nil
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, float64(y)), nil
		case float64:
			return cmpOrdered(x, y), nil
		}
	case string:
		switch y := b.(type) {
		case string:
			return strings.Compare(x, y), nil
		case []byte:
			return strings.Compare(x, string(y)), nil
		}
	case []byte:
		switch y := b.(type) {
		case []byte:
			return bytes.Compare(x, y), nil
		case string:
			return bytes.Compare(x, []byte(y)), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	}
	return 0, fmt.Errorf("condition: cannot compare %T with %T", a, b)
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// like matches s against a LIKE pattern where '\' escapes the next rune.
func like(pattern, s string) (bool, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		b.WriteString(regexp.QuoteMeta(`\`))
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false, fmt.Errorf("condition: compile LIKE pattern %q: %w", pattern, err)
	}
	return re.MatchString(s), nil
}
