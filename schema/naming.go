package schema

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

// defaultAcronyms keep names such as UserID from splitting into u_s_e_r_i_d.
// UUID is listed before ID since replacements apply in order.
var defaultAcronyms = []string{"UUID", "URL", "HTTP", "HTML", "JSON", "API", "SQL", "ID"}

// Naming derives table and column names from Go identifiers.
type Naming struct {
	rules    *inflect.Ruleset
	acronyms map[string]string
}

// NewNaming returns the default naming rules extended with extra acronyms.
func NewNaming(acronyms ...string) *Naming {
	rules := inflect.NewDefaultRuleset()
	n := &Naming{rules: rules, acronyms: make(map[string]string)}
	for _, a := range append(acronyms, defaultAcronyms...) {
		rules.AddAcronym(a)
		n.acronyms[strings.ToLower(a)] = a
	}
	return n
}

// Table returns the plural snake_case table name of a type: OrderItem -> order_items.
func (n *Naming) Table(typeName string) string {
	return n.rules.Pluralize(n.rules.Underscore(typeName))
}

// Column returns the snake_case column name of a field: CreatedAt -> created_at.
func (n *Naming) Column(fieldName string) string {
	return n.rules.Underscore(fieldName)
}

// Entity returns the Go type name of a table: order_items -> OrderItem.
func (n *Naming) Entity(table string) string {
	if _, name, ok := strings.Cut(table, "."); ok {
		table = name
	}
	return n.Pascal(n.rules.Singularize(table))
}

// Pascal returns the exported Go identifier of a snake_case name: user_id -> UserID.
func (n *Naming) Pascal(s string) string {
	var b strings.Builder
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if a, ok := n.acronyms[strings.ToLower(w)]; ok {
			b.WriteString(a)
			continue
		}
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		b.WriteString(string(rs))
	}
	out := b.String()
	if out == "" || !unicode.IsLetter([]rune(out)[0]) {
		out = "X" + out
	}
	return out
}
