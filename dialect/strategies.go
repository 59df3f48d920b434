package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

type postgres struct{}

func (*postgres) Name() string { return Postgres }
func (*postgres) Quote(ident string) string { return quote(ident, '"', '"') }
func (*postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (*postgres) MaxParams() int { return 65535 }
func (*postgres) LikeEscape() string { return "" }
func (*postgres) DefaultValues() string { return " DEFAULT VALUES" }
func (*postgres) Upsert(u *Upsert) string { return onConflict(u) }
func (*postgres) Returning(c string) (string, string) { return "", " RETURNING " + c }

func (*postgres) Paging(b *strings.Builder, limit, offset int, _ bool) {
	writeLimitOffset(b, limit, offset, "")
}

// TableHint renders the hint as a leading optimizer comment (pg_hint_plan).
func (*postgres) TableHint(table, hint string) (string, string) {
	return table, "/*+ " + hint + " */ "
}

type mysql struct{}

func (*mysql) Name() string { return MySQL }
func (*mysql) Quote(ident string) string { return quote(ident, '`', '`') }
func (*mysql) Placeholder(int) string { return "?" }
func (*mysql) MaxParams() int { return 65535 }
func (*mysql) LikeEscape() string { return "" }
func (*mysql) DefaultValues() string { return " () VALUES ()" }
func (*mysql) Returning(string) (string, string) { return "", "" }

func (*mysql) Paging(b *strings.Builder, limit, offset int, _ bool) {
	writeLimitOffset(b, limit, offset, "18446744073709551615")
}

func (*mysql) TableHint(table, hint string) (string, string) {
	return table + " " + hint, ""
}

func (*mysql) Upsert(u *Upsert) string {
	var b strings.Builder
	b.WriteString(insertInto(u))
	b.WriteString(" ON DUPLICATE KEY UPDATE ")
	updates := u.Updates
	if len(updates) == 0 {
		// No-op assignment keeps existing rows untouched.
		c := touch(u)
		b.WriteString(c + " = " + c)
		return b.String()
	}
	for i, c := range updates {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c + " = VALUES(" + c + ")")
	}
	return b.String()
}

type sqlite struct{}

func (*sqlite) Name() string { return SQLite }
func (*sqlite) Quote(ident string) string { return quote(ident, '"', '"') }
func (*sqlite) Placeholder(int) string { return "?" }
func (*sqlite) MaxParams() int { return 32766 }
func (*sqlite) LikeEscape() string { return ` ESCAPE '\'` }
func (*sqlite) DefaultValues() string { return " DEFAULT VALUES" }
func (*sqlite) Upsert(u *Upsert) string { return onConflict(u) }
func (*sqlite) Returning(c string) (string, string) { return "", " RETURNING " + c }

func (*sqlite) Paging(b *strings.Builder, limit, offset int, _ bool) {
	writeLimitOffset(b, limit, offset, "-1")
}

// TableHint writes the hint after the table, e.g. "INDEXED BY users_email".
func (*sqlite) TableHint(table, hint string) (string, string) {
	return table + " " + hint, ""
}

type sqlserver struct{}

func (*sqlserver) Name() string { return SQLServer }
func (*sqlserver) Quote(ident string) string { return quote(ident, '[', ']') }
func (*sqlserver) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }
func (*sqlserver) MaxParams() int { return 2100 }
func (*sqlserver) LikeEscape() string { return ` ESCAPE '\'` }
func (*sqlserver) DefaultValues() string { return " DEFAULT VALUES" }

func (*sqlserver) Returning(c string) (string, string) {
	return " OUTPUT INSERTED." + c, ""
}

// Paging uses OFFSET/FETCH, which requires an ORDER BY clause.
func (*sqlserver) Paging(b *strings.Builder, limit, offset int, ordered bool) {
	if limit <= 0 && offset <= 0 {
		return
	}
	if !ordered {
		b.WriteString(" ORDER BY (SELECT NULL)")
	}
	fmt.Fprintf(b, " OFFSET %d ROWS", offset)
	if limit > 0 {
		fmt.Fprintf(b, " FETCH NEXT %d ROWS ONLY", limit)
	}
}

func (*sqlserver) TableHint(table, hint string) (string, string) {
	return table + " WITH (" + hint + ")", ""
}

func (*sqlserver) Upsert(u *Upsert) string {
	var b strings.Builder
	b.WriteString("MERGE INTO " + u.Table + " AS T USING (VALUES ")
	b.WriteString(values(u.Rows))
	b.WriteString(") AS S (" + strings.Join(u.Columns, ", ") + ") ON (")
	for i, q := range u.Qualifiers {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("T." + q + " = S." + q)
	}
	b.WriteString(")")
	switch {
	case len(u.Updates) > 0:
		b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		for i, c := range u.Updates {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("T." + c + " = S." + c)
		}
	case u.Returning != "" && touch(u) != u.Generated:
		// Matched rows are output only when updated.
		c := touch(u)
		b.WriteString(" WHEN MATCHED THEN UPDATE SET T." + c + " = S." + c)
	}
	var cols, src []string
	for _, c := range u.Columns {
		if c == u.Generated {
			continue
		}
		cols = append(cols, c)
		src = append(src, "S."+c)
	}
	if len(cols) == 0 {
		b.WriteString(" WHEN NOT MATCHED THEN INSERT DEFAULT VALUES")
	} else {
		b.WriteString(" WHEN NOT MATCHED THEN INSERT (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(src, ", ") + ")")
	}
	if u.Returning != "" {
		b.WriteString(" OUTPUT INSERTED." + u.Returning)
	}
	b.WriteString(";")
	return b.String()
}
