package fieldgen

import (
	"strings"

	"github.com/dave/jennifer/jen"
)

type kind uint8

const (
	kindAny kind = iota
	kindBool
	kindInt
	kindFloat
	kindString
	kindTime
	kindBytes
)

// goTyp is the Go type of a column.
type goTyp struct {
	kind kind
}

// code returns the field type, a pointer when nullable. Byte slices and
// interfaces already hold NULL.
func (t goTyp) code(nullable bool) jen.Code {
	var c *jen.Statement
	switch t.kind {
	case kindBool:
		c = jen.Bool()
	case kindInt:
		c = jen.Int64()
	case kindFloat:
		c = jen.Float64()
	case kindString:
		c = jen.String()
	case kindTime:
		c = jen.Qual("time", "Time")
	case kindBytes:
		return jen.Index().Byte()
	default:
		return jen.Id("any")
	}
	if nullable {
		return jen.Op("*").Add(c)
	}
	return c
}

// textual types whose names contain a numeric keyword.
var textual = []string{"interval", "point", "polygon", "inet", "cidr"}

// goType maps a raw database type to a Go type.
func goType(dbType string) goTyp {
	t := strings.ToLower(strings.TrimSpace(dbType))
	switch {
	case t == "":
		return goTyp{kindAny}
	case t == "tinyint(1)", t == "bit", t == "bit(1)", strings.HasPrefix(t, "bool"):
		return goTyp{kindBool}
	case containsAny(t, textual...):
		return goTyp{kindString}
	case containsAny(t, "timestamp", "datetime", "date", "time"):
		return goTyp{kindTime}
	case containsAny(t, "int", "serial"):
		return goTyp{kindInt}
	case containsAny(t, "real", "double", "float", "numeric", "decimal", "money"):
		return goTyp{kindFloat}
	case containsAny(t, "blob", "bytea", "binary", "image"):
		return goTyp{kindBytes}
	case containsAny(t, "char", "text", "clob", "uuid", "json", "enum", "xml", "set"):
		return goTyp{kindString}
	}
	return goTyp{kindAny}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
