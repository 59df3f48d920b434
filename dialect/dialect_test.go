package dialect_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlcore/dialect"
)

func TestGet(t *testing.T) {
	tests := map[string]string{
		"postgres":   dialect.Postgres,
		"PostgreSQL": dialect.Postgres,
		"pgx":        dialect.Postgres,
		"mysql":      dialect.MySQL,
		"sqlite3":    dialect.SQLite,
		"sqlite":     dialect.SQLite,
		"mssql":      dialect.SQLServer,
	}
	for in, want := range tests {
		s, err := dialect.Get(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, s.Name())
	}
	_, err := dialect.Get("oracle")
	require.Error(t, err)
	assert.Panics(t, func() { dialect.MustGet("oracle") })
}

func TestQuote(t *testing.T) {
	tests := []struct {
		dialect string
		in      string
		want    string
	}{
		{dialect.Postgres, "users", `"users"`},
		{dialect.Postgres, "public.users", `"public"."users"`},
		{dialect.Postgres, `we"ird`, `"we""ird"`},
		{dialect.MySQL, "users", "`users`"},
		{dialect.MySQL, "a`b", "`a``b`"},
		{dialect.SQLite, "users", `"users"`},
		{dialect.SQLServer, "dbo.users", "[dbo].[users]"},
		{dialect.SQLServer, "a]b", "[a]]b]"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, dialect.MustGet(tt.dialect).Quote(tt.in))
		})
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$3", dialect.MustGet(dialect.Postgres).Placeholder(3))
	assert.Equal(t, "?", dialect.MustGet(dialect.MySQL).Placeholder(3))
	assert.Equal(t, "?", dialect.MustGet(dialect.SQLite).Placeholder(3))
	assert.Equal(t, "@p3", dialect.MustGet(dialect.SQLServer).Placeholder(3))
}

func TestPaging(t *testing.T) {
	tests := []struct {
		dialect       string
		limit, offset int
		ordered       bool
		want          string
	}{
		{dialect.Postgres, 10, 0, false, " LIMIT 10"},
		{dialect.Postgres, 10, 20, false, " LIMIT 10 OFFSET 20"},
		{dialect.Postgres, 0, 20, false, " OFFSET 20"},
		{dialect.MySQL, 0, 20, false, " LIMIT 18446744073709551615 OFFSET 20"},
		{dialect.SQLite, 0, 20, false, " LIMIT -1 OFFSET 20"},
		{dialect.SQLite, 0, 0, false, ""},
		{dialect.SQLServer, 10, 0, true, " OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY"},
		{dialect.SQLServer, 10, 5, false, " ORDER BY (SELECT NULL) OFFSET 5 ROWS FETCH NEXT 10 ROWS ONLY"},
		{dialect.SQLServer, 0, 0, false, ""},
	}
	for _, tt := range tests {
		var b strings.Builder
		dialect.MustGet(tt.dialect).Paging(&b, tt.limit, tt.offset, tt.ordered)
		assert.Equal(t, tt.want, b.String(), tt.dialect)
	}
}

func TestValidHint(t *testing.T) {
	assert.True(t, dialect.ValidHint("NOLOCK"))
	assert.True(t, dialect.ValidHint("USE INDEX (idx_email)"))
	assert.True(t, dialect.ValidHint("SeqScan(users)"))
	assert.False(t, dialect.ValidHint("NOLOCK; DROP TABLE users"))
	assert.False(t, dialect.ValidHint("x */ DELETE"))
	assert.False(t, dialect.ValidHint("USE INDEX (a"))
	assert.False(t, dialect.ValidHint("'quoted'"))
	assert.False(t, dialect.ValidHint(""))
}

func TestTableHint(t *testing.T) {
	ref, prefix := dialect.MustGet(dialect.SQLServer).TableHint("[users]", "NOLOCK")
	assert.Equal(t, "[users] WITH (NOLOCK)", ref)
	assert.Empty(t, prefix)

	ref, prefix = dialect.MustGet(dialect.Postgres).TableHint(`"users"`, "SeqScan(users)")
	assert.Equal(t, `"users"`, ref)
	assert.Equal(t, "/*+ SeqScan(users) */ ", prefix)

	ref, _ = dialect.MustGet(dialect.MySQL).TableHint("`users`", "USE INDEX (idx)")
	assert.Equal(t, "`users` USE INDEX (idx)", ref)
}

func TestUpsert(t *testing.T) {
	u := func(q func(string) string) *dialect.Upsert {
		return &dialect.Upsert{
			Table:      q("users"),
			Columns:    []string{q("id"), q("name")},
			Rows:       [][]string{{"$1", "$2"}},
			Qualifiers: []string{q("id")},
			Updates:    []string{q("name")},
		}
	}
	t.Run("Postgres", func(t *testing.T) {
		s := dialect.MustGet(dialect.Postgres)
		up := u(s.Quote)
		up.Returning = s.Quote("id")
		assert.Equal(t,
			`INSERT INTO "users" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name" RETURNING "id"`,
			s.Upsert(up))
	})
	t.Run("SQLiteNothingToUpdate", func(t *testing.T) {
		s := dialect.MustGet(dialect.SQLite)
		up := u(s.Quote)
		up.Updates = nil
		assert.Equal(t, `INSERT INTO "users" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO NOTHING`, s.Upsert(up))
	})
	t.Run("NothingToUpdateReturning", func(t *testing.T) {
		s := dialect.MustGet(dialect.SQLite)
		up := u(s.Quote)
		up.Columns = []string{`"id"`, `"email"`}
		up.Qualifiers = []string{`"id"`, `"email"`}
		up.Updates = nil
		up.Generated = `"id"`
		up.Returning = `"id"`
		assert.Equal(t,
			`INSERT INTO "users" ("id", "email") VALUES ($1, $2) ON CONFLICT ("id", "email") DO UPDATE SET "email" = EXCLUDED."email" RETURNING "id"`,
			s.Upsert(up))
	})
	t.Run("MySQL", func(t *testing.T) {
		s := dialect.MustGet(dialect.MySQL)
		assert.Equal(t,
			"INSERT INTO `users` (`id`, `name`) VALUES ($1, $2) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)",
			s.Upsert(u(s.Quote)))
		up := u(s.Quote)
		up.Updates = nil
		assert.Equal(t, "INSERT INTO `users` (`id`, `name`) VALUES ($1, $2) ON DUPLICATE KEY UPDATE `id` = `id`", s.Upsert(up))
	})
	t.Run("SQLServer", func(t *testing.T) {
		s := dialect.MustGet(dialect.SQLServer)
		up := u(s.Quote)
		up.Returning = s.Quote("id")
		assert.Equal(t,
			"MERGE INTO [users] AS T USING (VALUES ($1, $2)) AS S ([id], [name]) ON (T.[id] = S.[id])"+
				" WHEN MATCHED THEN UPDATE SET T.[name] = S.[name]"+
				" WHEN NOT MATCHED THEN INSERT ([id], [name]) VALUES (S.[id], S.[name]) OUTPUT INSERTED.[id];",
			s.Upsert(up))
	})
	t.Run("SQLServerGenerated", func(t *testing.T) {
		s := dialect.MustGet(dialect.SQLServer)
		up := u(s.Quote)
		up.Generated = s.Quote("id")
		up.Returning = s.Quote("id")
		assert.Equal(t,
			"MERGE INTO [users] AS T USING (VALUES ($1, $2)) AS S ([id], [name]) ON (T.[id] = S.[id])"+
				" WHEN MATCHED THEN UPDATE SET T.[name] = S.[name]"+
				" WHEN NOT MATCHED THEN INSERT ([name]) VALUES (S.[name]) OUTPUT INSERTED.[id];",
			s.Upsert(up))
	})
}

func TestReturning(t *testing.T) {
	out, ret := dialect.MustGet(dialect.Postgres).Returning(`"id"`)
	assert.Empty(t, out)
	assert.Equal(t, ` RETURNING "id"`, ret)

	out, ret = dialect.MustGet(dialect.SQLServer).Returning("[id]")
	assert.Equal(t, " OUTPUT INSERTED.[id]", out)
	assert.Empty(t, ret)

	out, ret = dialect.MustGet(dialect.MySQL).Returning("`id`")
	assert.Empty(t, out)
	assert.Empty(t, ret)
}

func TestMaxParams(t *testing.T) {
	assert.Equal(t, 2100, dialect.MustGet(dialect.SQLServer).MaxParams())
	assert.Equal(t, 32766, dialect.MustGet(dialect.SQLite).MaxParams())
}
