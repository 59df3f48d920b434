package materialize_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/materialize"
)

type Audit struct {
	CreatedAt time.Time `db:"created_at"`
}

type User struct {
	ID    int64 `db:"id"`
	Name  string
	Email *string
	Age   int32
	Admin bool
	Audit
}

func query(t *testing.T, rows *sqlmock.Rows) *sql.Rows {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectQuery("SELECT").WillReturnRows(rows)
	r, err := db.Query("SELECT")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestEntities(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", `"name"`, "email", "age", "admin", "created_at", "extra"}).
		AddRow(int64(1), []byte("ann"), "a@x", int64(30), int64(1), created, "dropped").
		AddRow(int64(2), "bob", nil, int64(41), int64(0), "2024-05-01 10:00:00", nil)

	m := materialize.NewMapper(nil)
	users, err := materialize.Entities[User](m, query(t, rows))
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, int64(1), users[0].ID)
	assert.Equal(t, "ann", users[0].Name)
	require.NotNil(t, users[0].Email)
	assert.Equal(t, "a@x", *users[0].Email)
	assert.Equal(t, int32(30), users[0].Age)
	assert.True(t, users[0].Admin)
	assert.Equal(t, created, users[0].CreatedAt)

	assert.Nil(t, users[1].Email)
	assert.False(t, users[1].Admin)
	assert.True(t, created.Equal(users[1].CreatedAt))
	assert.Equal(t, 1, m.Plans())
}

func TestEntitiesPlanPerSignature(t *testing.T) {
	m := materialize.NewMapper(nil)
	_, err := materialize.Entities[User](m, query(t, sqlmock.NewRows([]string{"id"}).AddRow(int64(1))))
	require.NoError(t, err)
	_, err = materialize.Entities[*User](m, query(t, sqlmock.NewRows([]string{"id"}).AddRow(int64(2))))
	require.NoError(t, err)
	users, err := materialize.Entities[*User](m, query(t, sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(3), "c")))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "c", users[0].Name)
	assert.Zero(t, users[0].Age, "fields without a column stay zero")
	assert.Equal(t, 2, m.Plans())
}

func TestEntitiesRejectsNonStruct(t *testing.T) {
	_, err := materialize.Entities[int](nil, query(t, sqlmock.NewRows([]string{"id"}).AddRow(int64(1))))
	assert.Error(t, err)
}

func TestDynamic(t *testing.T) {
	rows := sqlmock.NewRows([]string{"b", "a"}).AddRow(int64(1), "x").AddRow(int64(2), nil)
	got, err := materialize.Dynamic(query(t, rows))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"b", "a"}, got[0].Columns)
	v, ok := got[0].Get("a")
	require.True(t, ok)
	assert.Equal(t, "x", v)
	assert.Equal(t, map[string]any{"b": int64(2), "a": nil}, got[1].Map())
	_, ok = got[1].Get("missing")
	assert.False(t, ok)
}

func TestScalar(t *testing.T) {
	t.Run("Count", func(t *testing.T) {
		n, err := materialize.Scalar[int64](query(t, sqlmock.NewRows([]string{"count"}).AddRow(int64(7))), sqlcore.OpCount)
		require.NoError(t, err)
		assert.True(t, n.Valid)
		assert.Equal(t, int64(7), n.V)
	})
	t.Run("CountEmpty", func(t *testing.T) {
		n, err := materialize.Scalar[int64](query(t, sqlmock.NewRows([]string{"count"})), sqlcore.OpCount)
		require.NoError(t, err)
		assert.True(t, n.Valid)
		assert.Zero(t, n.V)
	})
	t.Run("MaxEmpty", func(t *testing.T) {
		n, err := materialize.Scalar[int64](query(t, sqlmock.NewRows([]string{"max"})), sqlcore.OpMax)
		require.NoError(t, err)
		assert.False(t, n.Valid)
	})
	t.Run("SumNull", func(t *testing.T) {
		n, err := materialize.Scalar[float64](query(t, sqlmock.NewRows([]string{"sum"}).AddRow(nil)), sqlcore.OpSum)
		require.NoError(t, err)
		assert.False(t, n.Valid)
	})
	t.Run("AverageFromText", func(t *testing.T) {
		n, err := materialize.Scalar[float64](query(t, sqlmock.NewRows([]string{"avg"}).AddRow([]byte("2.5"))), sqlcore.OpAverage)
		require.NoError(t, err)
		assert.True(t, n.Valid)
		assert.InDelta(t, 2.5, n.V, 1e-9)
	})
}
