package schema_test

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/schema"
)

type Audit struct {
	CreatedAt time.Time
	UpdatedAt *time.Time
}

type User struct {
	ID      int64
	Email   string `db:"email_address"`
	Name    sql.NullString
	Age     int
	Secret  string `db:"-"`
	private string
	Audit
}

type OrderItem struct {
	OrderID   int64 `db:"order_id,pk"`
	ProductID int64 `db:"product_id,pk"`
	Quantity  int
}

type Account struct {
	Key  string `db:"key,pk"`
	Seq  int64  `db:"seq,identity"`
	Name string
}

func (Account) TableName() string { return "tbl_accounts" }

type Event struct {
	Kind    string
	Payload string
}

type Broken struct {
	A int64 `db:"a,identity"`
	B int64 `db:"b,identity"`
}

func TestNaming(t *testing.T) {
	n := schema.NewNaming()
	assert.Equal(t, "users", n.Table("User"))
	assert.Equal(t, "order_items", n.Table("OrderItem"))
	assert.Equal(t, "categories", n.Table("Category"))
	assert.Equal(t, "user_id", n.Column("UserID"))
	assert.Equal(t, "created_at", n.Column("CreatedAt"))
	assert.Equal(t, "external_uuid", n.Column("ExternalUUID"))
	assert.Equal(t, "id", n.Column("ID"))

	assert.Equal(t, "OrderItem", n.Entity("order_items"))
	assert.Equal(t, "Category", n.Entity("public.categories"))
	assert.Equal(t, "UserID", n.Pascal("user_id"))
	assert.Equal(t, "APIURL", n.Pascal("api_url"))
	assert.Equal(t, "X2fa", n.Pascal("2fa"))
}

func TestResolveEntity(t *testing.T) {
	r := schema.NewResolver()
	tbl, err := r.Resolve(&User{})
	require.NoError(t, err)

	assert.Equal(t, "users", tbl.Name())
	assert.Equal(t, reflect.TypeOf(User{}), tbl.Type())

	var names []string
	for _, c := range tbl.Columns() {
		names = append(names, c.Physical)
	}
	assert.Equal(t, []string{"id", "email_address", "name", "age", "created_at", "updated_at"}, names)

	keys := tbl.PrimaryKeys()
	require.Len(t, keys, 1)
	assert.Equal(t, "ID", keys[0].Name)
	id, ok := tbl.Identity()
	require.True(t, ok)
	assert.Equal(t, "id", id.Physical)

	c, ok := tbl.Column("EMAIL")
	require.True(t, ok)
	assert.Equal(t, "email_address", c.Physical)
	c, ok = tbl.Column("email_address")
	require.True(t, ok)
	assert.Equal(t, "Email", c.Name)

	_, ok = tbl.Column("Secret")
	assert.False(t, ok)
	_, err = tbl.MustColumn("nope")
	assert.True(t, sqlcore.IsUnknownField(err))
}

func TestResolveCompositeKey(t *testing.T) {
	tbl, err := schema.NewResolver().Resolve(OrderItem{})
	require.NoError(t, err)
	assert.Len(t, tbl.PrimaryKeys(), 2)
	_, ok := tbl.Identity()
	assert.False(t, ok)
}

func TestResolveTableNamer(t *testing.T) {
	tbl, err := schema.NewResolver().Resolve(Account{})
	require.NoError(t, err)
	assert.Equal(t, "tbl_accounts", tbl.Name())
	id, ok := tbl.Identity()
	require.True(t, ok)
	assert.Equal(t, "seq", id.Physical)
	require.Len(t, tbl.PrimaryKeys(), 1)
	assert.Equal(t, "key", tbl.PrimaryKeys()[0].Physical)
}

func TestResolveWithoutKey(t *testing.T) {
	tbl, err := schema.NewResolver().Resolve(Event{})
	require.NoError(t, err)
	assert.Empty(t, tbl.PrimaryKeys())
}

func TestResolveErrors(t *testing.T) {
	r := schema.NewResolver()
	_, err := r.Resolve(Broken{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one identity")

	_, err = r.Resolve(42)
	require.Error(t, err)

	_, err = r.Resolve(nil)
	require.Error(t, err)
}

func TestResolveCachesPerType(t *testing.T) {
	r := schema.NewResolver()
	var wg sync.WaitGroup
	tables := make([]*schema.Table, 16)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tbl, err := r.Resolve(&User{})
			assert.NoError(t, err)
			tables[i] = tbl
		}(i)
	}
	wg.Wait()
	for _, tbl := range tables {
		assert.Same(t, tables[0], tbl)
	}
	byName, err := r.ResolveName(context.Background(), "users")
	require.NoError(t, err)
	assert.Same(t, tables[0], byName)
}

type countingInspector struct {
	calls atomic.Int32
}

func (c *countingInspector) InspectTable(_ context.Context, name string) (*schema.Table, error) {
	c.calls.Add(1)
	if name == "missing" {
		return nil, errors.New("no such table")
	}
	time.Sleep(10 * time.Millisecond)
	return schema.NewTable(name, nil,
		schema.Column{Name: "id", PrimaryKey: true, Identity: true},
		schema.Column{Name: "title"},
	)
}

func TestResolveName(t *testing.T) {
	insp := &countingInspector{}
	r := schema.NewResolver(schema.WithInspector(insp))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl, err := r.ResolveName(context.Background(), "posts")
			assert.NoError(t, err)
			assert.Equal(t, "posts", tbl.Name())
		}()
	}
	wg.Wait()
	_, err := r.ResolveName(context.Background(), "posts")
	require.NoError(t, err)
	assert.Equal(t, int32(1), insp.calls.Load())

	_, err = r.ResolveName(context.Background(), "missing")
	require.Error(t, err)

	_, err = schema.NewResolver().ResolveName(context.Background(), "posts")
	require.Error(t, err)
}

func TestRegisterFirstWins(t *testing.T) {
	r := schema.NewResolver()
	first, err := schema.NewTable("logs", nil, schema.Column{Name: "id", PrimaryKey: true})
	require.NoError(t, err)
	second, err := schema.NewTable("logs", nil, schema.Column{Name: "uid", PrimaryKey: true})
	require.NoError(t, err)

	assert.Same(t, first, r.Register(first))
	assert.Same(t, first, r.Register(second))
	got, err := r.ResolveName(context.Background(), "logs")
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestNewTableDuplicate(t *testing.T) {
	_, err := schema.NewTable("t", nil, schema.Column{Name: "a"}, schema.Column{Name: "A"})
	require.Error(t, err)
	_, err = schema.NewTable("", nil, schema.Column{Name: "a"})
	require.Error(t, err)
}

func TestValuesAndSetValue(t *testing.T) {
	tbl, err := schema.NewResolver().Resolve(User{})
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	u := &User{Email: "a@example.com", Age: 30, Audit: Audit{CreatedAt: now}}
	values, err := tbl.Values(u)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", values["Email"])
	assert.Equal(t, now, values["CreatedAt"])

	v, ok := tbl.ValueOf(*u, "age")
	require.True(t, ok)
	assert.Equal(t, 30, v)

	require.NoError(t, tbl.SetValue(u, "id", int64(7)))
	assert.Equal(t, int64(7), u.ID)
	require.NoError(t, tbl.SetValue(u, "name", "Alice"))
	assert.Equal(t, sql.NullString{String: "Alice", Valid: true}, u.Name)
	require.NoError(t, tbl.SetValue(u, "updated_at", now))
	require.NotNil(t, u.UpdatedAt)
	assert.Equal(t, now, *u.UpdatedAt)

	assert.Error(t, tbl.SetValue(*u, "id", 1))
	_, err = tbl.Values(&Event{})
	assert.Error(t, err)
}

func TestAssign(t *testing.T) {
	var dst struct {
		I   int32
		U   uint8
		F   float64
		S   string
		B   bool
		Raw []byte
		T   time.Time
		P   *int64
	}
	v := reflect.ValueOf(&dst).Elem()
	require.NoError(t, schema.Assign(v.Field(0), int64(12)))
	require.NoError(t, schema.Assign(v.Field(1), "7"))
	require.NoError(t, schema.Assign(v.Field(2), []byte("2.5")))
	require.NoError(t, schema.Assign(v.Field(3), []byte("text")))
	require.NoError(t, schema.Assign(v.Field(4), int64(1)))
	require.NoError(t, schema.Assign(v.Field(5), "bytes"))
	require.NoError(t, schema.Assign(v.Field(6), "2024-05-01 12:00:00"))
	require.NoError(t, schema.Assign(v.Field(7), int64(9)))

	assert.Equal(t, int32(12), dst.I)
	assert.Equal(t, uint8(7), dst.U)
	assert.Equal(t, 2.5, dst.F)
	assert.Equal(t, "text", dst.S)
	assert.True(t, dst.B)
	assert.Equal(t, []byte("bytes"), dst.Raw)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), dst.T)
	require.NotNil(t, dst.P)
	assert.Equal(t, int64(9), *dst.P)

	require.NoError(t, schema.Assign(v.Field(7), nil))
	assert.Nil(t, dst.P)
	require.NoError(t, schema.Assign(v.Field(0), nil))
	assert.Equal(t, int32(0), dst.I)

	assert.Error(t, schema.Assign(v.Field(0), "abc"))
	assert.Error(t, schema.Assign(v.Field(6), "not a time"))
}
