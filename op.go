package sqlcore

import (
	"fmt"
	"strings"
)

// Op identifies the kind of operation a statement performs.
type Op uint8

// Operation kinds.
const (
	OpSelect Op = iota
	OpCount
	OpSum
	OpAverage
	OpMin
	OpMax
	OpDelete
	OpUpdate
	OpInsert
	OpInsertMany
	OpUpsert
)

var opNames = [...]string{
	OpSelect:     "Select",
	OpCount:      "Count",
	OpSum:        "Sum",
	OpAverage:    "Average",
	OpMin:        "Min",
	OpMax:        "Max",
	OpDelete:     "Delete",
	OpUpdate:     "Update",
	OpInsert:     "Insert",
	OpInsertMany: "InsertMany",
	OpUpsert:     "Upsert",
}

// String returns the operation name.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// IsRead reports whether the operation only reads rows.
func (o Op) IsRead() bool {
	return o <= OpMax
}

// IsAggregate reports whether the operation returns a single aggregated value.
func (o Op) IsAggregate() bool {
	return o >= OpCount && o <= OpMax
}

// IsWrite reports whether the operation modifies rows.
func (o Op) IsWrite() bool {
	return o > OpMax && o <= OpUpsert
}

// ParseOp returns the operation for the given case-insensitive name.
func ParseOp(s string) (Op, error) {
	for i, name := range opNames {
		if strings.EqualFold(name, s) {
			return Op(i), nil
		}
	}
	switch strings.ToLower(s) {
	case "avg":
		return OpAverage, nil
	case "merge":
		return OpUpsert, nil
	}
	return 0, fmt.Errorf("sqlcore: unknown operation %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Op) UnmarshalText(b []byte) error {
	op, err := ParseOp(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}
