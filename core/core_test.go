package core_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/cache"
	"github.com/syssam/sqlcore/condition"
	"github.com/syssam/sqlcore/core"
	"github.com/syssam/sqlcore/engine"
	"github.com/syssam/sqlcore/predicate"
	"github.com/syssam/sqlcore/statement"
)

type Person struct {
	ID    int64   `db:"id"`
	Name  string  `db:"name"`
	Age   int     `db:"age"`
	Email *string `db:"email"`
}

var (
	personAge   = predicate.Field[Person, int]("age")
	personName  = predicate.StringField[Person]("name")
	personEmail = predicate.StringField[Person]("email")
)

const schemaSQL = `CREATE TABLE people (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	age INTEGER NOT NULL,
	email TEXT
)`

// countingOpener hands out pooled connections and counts them.
type countingOpener struct {
	db             *sql.DB
	opened, closed atomic.Int64
}

func (o *countingOpener) Open(ctx context.Context) (engine.Conn, error) {
	c, err := o.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	o.opened.Add(1)
	return &countingConn{Conn: c, closed: &o.closed}, nil
}

type countingConn struct {
	*sql.Conn
	closed *atomic.Int64
}

func (c *countingConn) Close() error {
	c.closed.Add(1)
	return c.Conn.Close()
}

func openSQLite(t *testing.T) (*core.Core, *countingOpener) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "core.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	opener := &countingOpener{db: db}
	c := core.New(
		core.WithHandle(engine.Connect("sqlite", opener)),
		core.WithCache(cache.NewMemory()),
	)
	return c, opener
}

func email(s string) *string { return &s }

func people() []*Person {
	return []*Person{
		{Name: "alice", Age: 31, Email: email("alice@example.com")},
		{Name: "bob", Age: 19},
		{Name: "bea", Age: 25, Email: email("bea@example.org")},
		{Name: "carl", Age: 42, Email: email("carl_x@example.com")},
		{Name: "dora", Age: 35},
		{Name: "ed", Age: 21, Email: email("ed%@example.com")},
	}
}

func TestInsertAllAssignsIdentities(t *testing.T) {
	ctx := context.Background()
	c, opener := openSQLite(t)
	ps := people()
	n, err := core.InsertAll(ctx, c, ps, core.Call{})
	require.NoError(t, err)
	assert.EqualValues(t, len(ps), n)
	for i, p := range ps {
		assert.EqualValues(t, i+1, p.ID, p.Name)
	}
	assert.Equal(t, opener.opened.Load(), opener.closed.Load())
}

func TestQueryMatchesInMemoryEvaluation(t *testing.T) {
	ctx := context.Background()
	c, _ := openSQLite(t)
	ps := people()
	_, err := core.InsertAll(ctx, c, ps, core.Call{})
	require.NoError(t, err)
	all := make([]Person, len(ps))
	for i, p := range ps {
		all[i] = *p
	}
	tests := []struct {
		name string
		p    predicate.P[Person]
	}{
		{"gt", personAge.GT(30)},
		{"or", predicate.Or(personAge.LT(20), personName.HasPrefix("b"))},
		{"not null", personEmail.NotNull()},
		{"in", personAge.In(21, 35, 99)},
		{"between", personAge.Between(20, 31)},
		{"negated and", predicate.Not(predicate.And(personAge.GTE(25), personEmail.NotNull()))},
		{"negated equal over null", personEmail.EQ("bea@example.org").Not()},
		{"escaped underscore", personEmail.Contains("_x")},
		{"escaped percent", personEmail.HasPrefix("ed%")},
		{"not in", personName.NotIn("alice", "bob")},
		{"true", predicate.True[Person]()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := core.Query[Person](ctx, c, core.Call{Where: tt.p, OrderBy: []statement.Order{statement.Asc("id")}})
			require.NoError(t, err)
			want, err := predicate.Filter(tt.p, all)
			require.NoError(t, err)
			assert.Equal(t, names(want), names(got))
		})
	}
}

func names(ps []Person) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	sort.Strings(out)
	return out
}

func TestSelectInsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := openSQLite(t)
	p := &Person{Name: "frank", Age: 50, Email: email("frank@example.com")}
	require.NoError(t, core.Insert(ctx, c, p, core.Call{}))
	require.NotZero(t, p.ID)

	got, ok, err := core.First[Person](ctx, c, core.Call{Where: personName.EQ("frank")})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *p, got)

	got.Name = "frank2"
	got.Email = nil
	n, err := core.Update(ctx, c, &got, core.Call{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	again, ok, err := core.First[Person](ctx, c, core.Call{Where: personEmail.IsNull()})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, got, again)

	n, err = core.Delete(ctx, c, &again, core.Call{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	count, err := core.Count[Person](ctx, c, core.Call{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInvokeDynamicAndAggregates(t *testing.T) {
	ctx := context.Background()
	c, _ := openSQLite(t)
	_, err := core.InsertAll(ctx, c, people(), core.Call{})
	require.NoError(t, err)

	res, err := c.Invoke(ctx, core.Call{
		Op:      sqlcore.OpSelect,
		Table:   "people",
		Fields:  []string{"name", "age"},
		Where:   predicate.Triple{Field: "age", Op: condition.GreaterThan, Value: 30},
		OrderBy: []statement.Order{statement.Desc("age")},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	name, _ := res.Rows[0].Get("name")
	assert.Equal(t, "carl", name)

	res, err = c.Invoke(ctx, core.Call{Op: sqlcore.OpMax, Table: "people", Fields: []string{"age"}})
	require.NoError(t, err)
	assert.EqualValues(t, 42, res.Scalar)

	res, err = c.Invoke(ctx, core.Call{Op: sqlcore.OpCount, Table: "people", Where: predicate.Map{"age": 1000}})
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Scalar)

	res, err = c.Invoke(ctx, core.Call{Op: sqlcore.OpSum, Table: "people", Fields: []string{"age"}, Where: predicate.Map{"age": 1000}})
	require.NoError(t, err)
	assert.Nil(t, res.Scalar)

	avg, err := core.Scalar[float64, Person](ctx, c, core.Call{Op: sqlcore.OpAverage, Fields: []string{"age"}, Where: personAge.LT(30)})
	require.NoError(t, err)
	assert.True(t, avg.Valid)
	assert.InDelta(t, 65.0/3, avg.V, 0.001)
}

func TestInsertManyPartialFailure(t *testing.T) {
	ctx := context.Background()
	c, _ := openSQLite(t)
	ps := make([]*Person, 2500)
	for i := range ps {
		ps[i] = &Person{Name: fmt.Sprintf("p%04d", i), Age: i % 90}
	}
	ps[1500].Name = "p0000"

	n, err := core.InsertAll(ctx, c, ps, core.Call{BatchSize: 1000})
	require.Error(t, err)
	var partial *sqlcore.BatchPartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Batch)
	assert.Equal(t, 3, partial.Batches)
	assert.EqualValues(t, 1000, partial.Committed)
	assert.EqualValues(t, 1000, n)
	assert.True(t, sqlcore.IsConstraintError(err))

	count, err := core.Count[Person](ctx, c, core.Call{})
	require.NoError(t, err)
	assert.EqualValues(t, 1000, count)
	assert.NotZero(t, ps[999].ID)
	assert.Zero(t, ps[1000].ID)
}

func TestInsertManyBatches(t *testing.T) {
	ctx := context.Background()
	c, _ := openSQLite(t)
	var statements atomic.Int64
	tracer := engine.Hooks{Before: func(context.Context, *engine.Event) engine.Action {
		statements.Add(1)
		return engine.Continue
	}}
	ps := make([]*Person, 2500)
	for i := range ps {
		ps[i] = &Person{Name: fmt.Sprintf("p%04d", i), Age: i % 90}
	}
	n, err := core.InsertAll(ctx, c, ps, core.Call{BatchSize: 1000, Tracer: tracer})
	require.NoError(t, err)
	assert.EqualValues(t, 2500, n)
	assert.EqualValues(t, 3, statements.Load())
	assert.EqualValues(t, 2500, ps[2499].ID)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	c, _ := openSQLite(t)
	ps := people()
	_, err := core.InsertAll(ctx, c, ps, core.Call{})
	require.NoError(t, err)

	ps[0].Age = 99
	n, err := core.Upsert(ctx, c, []*Person{ps[0], {Name: "zed", Age: 7}}, core.Call{
		Qualifiers: []string{"name"},
		Fields:     []string{"name", "age", "email"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, ok, err := core.First[Person](ctx, c, core.Call{Where: personName.EQ("alice")})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 99, got.Age)
	count, err := core.Count[Person](ctx, c, core.Call{})
	require.NoError(t, err)
	assert.EqualValues(t, len(ps)+1, count)
}

func TestUpsertGeneratesKeys(t *testing.T) {
	ctx := context.Background()
	c, _ := openSQLite(t)

	fresh := []*Person{{Name: "new1", Age: 1}, {Name: "new2", Age: 2}}
	n, err := core.Upsert(ctx, c, fresh, core.Call{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.EqualValues(t, 1, fresh[0].ID)
	assert.EqualValues(t, 2, fresh[1].ID)

	all, err := core.Query[Person](ctx, c, core.Call{OrderBy: []statement.Order{statement.Asc("id")}})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new1", all[0].Name)
	assert.Equal(t, "new2", all[1].Name)

	fresh[0].Age = 10
	mixed := []*Person{fresh[0], {Name: "new3", Age: 3}}
	n, err = core.Upsert(ctx, c, mixed, core.Call{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.EqualValues(t, 1, mixed[0].ID)
	assert.EqualValues(t, 3, mixed[1].ID)

	got, ok, err := core.First[Person](ctx, c, core.Call{Where: personName.EQ("new1")})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, got.Age)
	count, err := core.Count[Person](ctx, c, core.Call{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

type Tag struct {
	ID    int64  `db:"id"`
	Label string `db:"label"`
}

func TestUpsertNothingToUpdate(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "tags.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE tags (id INTEGER PRIMARY KEY AUTOINCREMENT, label TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)
	c := core.New(core.WithHandle(engine.DB("sqlite", db)))

	_, err = core.InsertAll(ctx, c, []*Tag{{Label: "a"}, {Label: "b"}}, core.Call{})
	require.NoError(t, err)

	tags := []*Tag{{Label: "a"}, {Label: "c"}}
	n, err := core.Upsert(ctx, c, tags, core.Call{Qualifiers: []string{"label"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "conflicting rows are counted")
	assert.EqualValues(t, 1, tags[0].ID)
	assert.EqualValues(t, 3, tags[1].ID)
	count, err := core.Count[Tag](ctx, c, core.Call{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestCachedScalar(t *testing.T) {
	ctx := context.Background()
	c, opener := openSQLite(t)
	_, err := core.InsertAll(ctx, c, people(), core.Call{})
	require.NoError(t, err)

	call := core.Call{CacheKey: "people:count", CacheTTL: time.Minute}
	first, err := core.Count[Person](ctx, c, call)
	require.NoError(t, err)
	_, err = core.DeleteWhere[Person](ctx, c, personName.EQ("bob"))
	require.NoError(t, err)
	opened := opener.opened.Load()

	second, err := core.Count[Person](ctx, c, call)
	require.NoError(t, err)
	assert.EqualValues(t, 6, first)
	assert.Equal(t, first, second)
	assert.Equal(t, opened, opener.opened.Load())

	top, err := core.Scalar[int64, Person](ctx, c, core.Call{Op: sqlcore.OpMax, Fields: []string{"age"}, Where: personAge.GT(100), CacheKey: "people:max"})
	require.NoError(t, err)
	assert.False(t, top.Valid)
	cached, err := core.Scalar[int64, Person](ctx, c, core.Call{Op: sqlcore.OpMax, Fields: []string{"age"}, CacheKey: "people:max"})
	require.NoError(t, err)
	assert.False(t, cached.Valid)

	require.NoError(t, c.Invalidate(ctx, "people"))
	third, err := core.Count[Person](ctx, c, call)
	require.NoError(t, err)
	assert.EqualValues(t, 5, third)
}

func TestDeleteWithEmptyCondition(t *testing.T) {
	ctx := context.Background()
	c, _ := openSQLite(t)
	_, err := core.InsertAll(ctx, c, people(), core.Call{})
	require.NoError(t, err)
	n, err := core.DeleteWhere[Person](ctx, c, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)
}

func TestCachedReads(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	mem := cache.NewMemory(cache.WithClock(func() time.Time { return now }))
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	c := core.New(core.WithHandle(engine.DB("sqlite", db)), core.WithCache(mem))
	_, err = core.InsertAll(ctx, c, people(), core.Call{})
	require.NoError(t, err)

	call := core.Call{Op: sqlcore.OpSelect, Entity: Person{}, Where: personAge.GT(30), CacheTTL: time.Minute}
	call.CacheKey, err = c.Key(ctx, call)
	require.NoError(t, err)
	assert.Contains(t, call.CacheKey, sqlcore.TablePrefix("people"))

	hinted := call
	hinted.Hints = "INDEXED BY people_age"
	hintedKey, err := c.Key(ctx, hinted)
	require.NoError(t, err)
	assert.NotEqual(t, call.CacheKey, hintedKey)

	res, err := c.Invoke(ctx, call)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Len(t, res.Rows, 3)

	_, err = core.DeleteWhere[Person](ctx, c, personAge.GT(40))
	require.NoError(t, err)

	res, err = c.Invoke(ctx, call)
	require.NoError(t, err)
	assert.True(t, res.Cached, "served until expiry or invalidation")
	assert.Len(t, res.Rows, 3)

	now = now.Add(time.Minute)
	res, err = c.Invoke(ctx, call)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Len(t, res.Rows, 2)

	require.NoError(t, c.Invalidate(ctx, "people"))
	assert.Zero(t, mem.Len())

	typed, err := core.Query[Person](ctx, c, core.Call{Where: personAge.GT(30), CacheKey: "people:typed", CacheTTL: time.Minute})
	require.NoError(t, err)
	cachedTyped, err := core.Query[Person](ctx, c, core.Call{Where: personAge.GT(30), CacheKey: "people:typed"})
	require.NoError(t, err)
	assert.Equal(t, typed, cachedTyped)
}

func TestUnsupportedPredicateSendsNothing(t *testing.T) {
	ctx := context.Background()
	c, opener := openSQLite(t)
	_, err := core.Query[Person](ctx, c, core.Call{Where: predicate.Opaque("adult", func(p Person) bool { return p.Age >= 18 })})
	require.Error(t, err)
	assert.True(t, sqlcore.IsUnsupportedPredicate(err))
	assert.Zero(t, opener.opened.Load())
}

func TestMissingHandle(t *testing.T) {
	_, err := core.New().Invoke(context.Background(), core.Call{Op: sqlcore.OpSelect, Table: "people"})
	require.Error(t, err)
}

func TestTimeoutReleasesConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT").WillDelayFor(time.Second).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	opener := &countingOpener{db: db}
	c := core.New(core.WithHandle(engine.Connect("postgres", opener)))
	_, err = core.Query[Person](context.Background(), c, core.Call{Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, sqlcore.IsCommandTimeout(err))
	assert.EqualValues(t, 1, opener.opened.Load())
	assert.EqualValues(t, 1, opener.closed.Load())
}

func TestMySQLIdentityFromLastInsertID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("INSERT INTO `people`").WillReturnResult(sqlmock.NewResult(40, 3))

	c := core.New(core.WithHandle(engine.DB("mysql", db)))
	ps := []*Person{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	n, err := core.InsertAll(context.Background(), c, ps, core.Call{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.EqualValues(t, []int64{40, 41, 42}, []int64{ps[0].ID, ps[1].ID, ps[2].ID})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectRendersBackToInsert(t *testing.T) {
	ctx := context.Background()
	c, _ := openSQLite(t)
	_, err := core.InsertAll(ctx, c, people(), core.Call{})
	require.NoError(t, err)

	got, err := core.Query[Person](ctx, c, core.Call{})
	require.NoError(t, err)
	tbl, err := c.Resolver().Resolve(Person{})
	require.NoError(t, err)
	for _, p := range got {
		values, err := tbl.Values(p)
		require.NoError(t, err)
		stmt, err := c.Compile(ctx, core.Call{Op: sqlcore.OpInsert, Entity: p, Rows: []map[string]any{values}})
		require.NoError(t, err)
		assert.Equal(t, "id", stmt.Identity)
		assert.Equal(t, []any{p.Name, p.Age, p.Email}, stmt.Args())
	}
}
