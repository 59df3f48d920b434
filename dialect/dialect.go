package dialect

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Dialect names.
const (
	Postgres  = "postgres"
	MySQL     = "mysql"
	SQLite    = "sqlite"
	SQLServer = "sqlserver"
)

// Strategy renders the dialect-specific parts of a statement.
// Implementations must be stateless and safe for concurrent use.
type Strategy interface {
	// Name returns the dialect name.
	Name() string

	// Quote quotes an identifier. Dotted names are quoted per part.
	Quote(ident string) string

	// Placeholder returns the placeholder of the n-th parameter, starting at 1.
	Placeholder(n int) string

	// MaxParams returns the maximum number of parameters of one statement.
	MaxParams() int

	// LikeEscape returns the clause appended after a LIKE pattern so that
	// '\' escapes wildcards, or "" when '\' is already the default escape.
	LikeEscape() string

	// Paging appends a limit/offset clause. ordered reports whether the
	// statement already has an ORDER BY clause.
	Paging(b *strings.Builder, limit, offset int, ordered bool)

	// TableHint applies a validated hint to a quoted table reference.
	// prefix is written before the statement when the dialect expresses hints as comments.
	TableHint(table, hint string) (ref, prefix string)

	// Returning returns the clauses that return the generated identity column:
	// output is written before VALUES, returning after the statement.
	// Both are empty when the dialect reports identities through LastInsertId.
	Returning(column string) (output, returning string)

	// DefaultValues returns the insert suffix used when no column is written.
	DefaultValues() string

	// Upsert renders an insert-or-update statement.
	Upsert(u *Upsert) string
}

// Upsert holds the pre-rendered parts of an insert-or-update statement.
// Identifiers are quoted and values are placeholders.
type Upsert struct {
	Table      string
	Columns    []string
	Rows       [][]string
	Qualifiers []string
	Updates    []string
	Returning  string // quoted identity column, empty for none

	// Generated is the quoted identity column when it is written as a match
	// column. Dialects that cannot insert explicit identities leave it out
	// of the insert branch.
	Generated string
}

// touch returns the match column assigned to itself when there is nothing
// to update, preferring one that is not generated.
func touch(u *Upsert) string {
	for _, q := range u.Qualifiers {
		if q != u.Generated {
			return q
		}
	}
	return u.Qualifiers[0]
}

var (
	mu         sync.RWMutex
	strategies = map[string]Strategy{}
	aliases    = map[string]string{
		"postgresql": Postgres,
		"pgx":        Postgres,
		"sqlite3":    SQLite,
		"mssql":      SQLServer,
		"mariadb":    MySQL,
	}
)

func init() {
	for _, s := range []Strategy{&postgres{}, &mysql{}, &sqlite{}, &sqlserver{}} {
		Register(s)
	}
}

// Register makes a strategy available by name, replacing any previous one.
func Register(s Strategy) {
	mu.Lock()
	defer mu.Unlock()
	strategies[s.Name()] = s
}

// Get returns the strategy registered under name or one of its aliases
// (e.g. "pgx" for Postgres, "sqlite3" for SQLite).
func Get(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	mu.RLock()
	defer mu.RUnlock()
	if s, ok := strategies[key]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("dialect: unsupported dialect %q", name)
}

// MustGet is like Get but panics on error.
func MustGet(name string) Strategy {
	s, err := Get(name)
	if err != nil {
		panic(err)
	}
	return s
}

// hintPattern is the conservative shape accepted for table hints:
// words, commas, parentheses and spaces.
var hintPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ ,()]*$`)

// ValidHint reports whether a hint may be written into a statement.
func ValidHint(hint string) bool {
	return hintPattern.MatchString(hint) && strings.Count(hint, "(") == strings.Count(hint, ")")
}

// quote quotes each dot-separated part of ident, doubling the closing
// quote inside names.
func quote(ident string, lq, rq byte) string {
	parts := strings.Split(ident, ".")
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteByte(lq)
		b.WriteString(strings.ReplaceAll(p, string(rq), string([]byte{rq, rq})))
		b.WriteByte(rq)
	}
	return b.String()
}

func writeLimitOffset(b *strings.Builder, limit, offset int, noLimit string) {
	switch {
	case limit > 0:
		fmt.Fprintf(b, " LIMIT %d", limit)
	case offset > 0 && noLimit != "":
		b.WriteString(" LIMIT ")
		b.WriteString(noLimit)
	}
	if offset > 0 {
		fmt.Fprintf(b, " OFFSET %d", offset)
	}
}

func values(rows [][]string) string {
	tuples := make([]string, len(rows))
	for i, r := range rows {
		tuples[i] = "(" + strings.Join(r, ", ") + ")"
	}
	return strings.Join(tuples, ", ")
}

func insertInto(u *Upsert) string {
	return "INSERT INTO " + u.Table + " (" + strings.Join(u.Columns, ", ") + ") VALUES " + values(u.Rows)
}

// onConflict renders the ON CONFLICT form shared by Postgres and SQLite.
func onConflict(u *Upsert) string {
	var b strings.Builder
	b.WriteString(insertInto(u))
	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(u.Qualifiers, ", "))
	b.WriteString(")")
	switch {
	case len(u.Updates) == 0 && u.Returning != "":
		// Conflicting rows still return their key.
		c := touch(u)
		b.WriteString(" DO UPDATE SET " + c + " = EXCLUDED." + c)
	case len(u.Updates) == 0:
		b.WriteString(" DO NOTHING")
	default:
		b.WriteString(" DO UPDATE SET ")
		for i, c := range u.Updates {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c + " = EXCLUDED." + c)
		}
	}
	if u.Returning != "" {
		b.WriteString(" RETURNING " + u.Returning)
	}
	return b.String()
}
