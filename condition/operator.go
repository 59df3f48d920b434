package condition

import (
	"fmt"
	"strings"
)

// Operator is a comparison applied by a Leaf.
type Operator uint8

// Comparison operators.
const (
	Equal Operator = iota + 1
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	Like
	NotLike
	In
	NotIn
	Between
	IsNull
	IsNotNull
)

var operators = [...]struct {
	name   string
	symbol string
}{
	Equal:              {"Equal", "="},
	NotEqual:           {"NotEqual", "<>"},
	LessThan:           {"LessThan", "<"},
	LessThanOrEqual:    {"LessThanOrEqual", "<="},
	GreaterThan:        {"GreaterThan", ">"},
	GreaterThanOrEqual: {"GreaterThanOrEqual", ">="},
	Like:               {"Like", "LIKE"},
	NotLike:            {"NotLike", "NOT LIKE"},
	In:                 {"In", "IN"},
	NotIn:              {"NotIn", "NOT IN"},
	Between:            {"Between", "BETWEEN"},
	IsNull:             {"IsNull", "IS NULL"},
	IsNotNull:          {"IsNotNull", "IS NOT NULL"},
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	return o >= Equal && o <= IsNotNull
}

// String returns the operator name.
func (o Operator) String() string {
	if o.Valid() {
		return operators[o].name
	}
	return fmt.Sprintf("Operator(%d)", o)
}

// SQL returns the SQL text of the operator.
func (o Operator) SQL() string {
	if o.Valid() {
		return operators[o].symbol
	}
	return ""
}

// Negate returns the operator selecting the complement rows.
// Between has no single-operator complement and reports false.
func (o Operator) Negate() (Operator, bool) {
	switch o {
	case Equal:
		return NotEqual, true
	case NotEqual:
		return Equal, true
	case LessThan:
		return GreaterThanOrEqual, true
	case GreaterThanOrEqual:
		return LessThan, true
	case LessThanOrEqual:
		return GreaterThan, true
	case GreaterThan:
		return LessThanOrEqual, true
	case Like:
		return NotLike, true
	case NotLike:
		return Like, true
	case In:
		return NotIn, true
	case NotIn:
		return In, true
	case IsNull:
		return IsNotNull, true
	case IsNotNull:
		return IsNull, true
	}
	return 0, false
}

// Arity describes how many values an operator takes.
type Arity uint8

// Operator arities.
const (
	Nullary  Arity = iota // no value
	Unary                 // exactly one scalar
	Binary                // exactly two values
	Variadic              // one or more values
)

// Arity returns the number of values the operator takes.
func (o Operator) Arity() Arity {
	switch o {
	case IsNull, IsNotNull:
		return Nullary
	case Between:
		return Binary
	case In, NotIn:
		return Variadic
	default:
		return Unary
	}
}

// ParseOperator parses an operator name or its SQL symbol, case-insensitively.
func ParseOperator(s string) (Operator, error) {
	t := strings.TrimSpace(s)
	for i := Equal; i <= IsNotNull; i++ {
		if strings.EqualFold(operators[i].name, t) || strings.EqualFold(operators[i].symbol, t) {
			return i, nil
		}
	}
	switch strings.ToLower(t) {
	case "==", "eq":
		return Equal, nil
	case "!=", "ne", "neq":
		return NotEqual, nil
	case "lt":
		return LessThan, nil
	case "lte", "le":
		return LessThanOrEqual, nil
	case "gt":
		return GreaterThan, nil
	case "gte", "ge":
		return GreaterThanOrEqual, nil
	}
	return 0, fmt.Errorf("condition: unknown operator %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (o Operator) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("condition: invalid operator %d", o)
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operator) UnmarshalText(b []byte) error {
	op, err := ParseOperator(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Conjunction joins the children of a Group.
type Conjunction uint8

// Group conjunctions.
const (
	And Conjunction = iota
	Or
)

// String returns the SQL keyword of the conjunction.
func (c Conjunction) String() string {
	if c == Or {
		return "OR"
	}
	return "AND"
}

// Flip returns the dual conjunction used by De Morgan's laws.
func (c Conjunction) Flip() Conjunction {
	if c == Or {
		return And
	}
	return Or
}
