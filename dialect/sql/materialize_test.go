package sql

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/wherekit"
	"github.com/syssam/wherekit/dialect"
)

// mapCache is an in-memory wherekit.Cache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

var _ wherekit.Cache = (*mapCache)(nil)

const reportingQuery = `SELECT "category_id" FROM "top_categories" WHERE "score" > $1`

// reporting returns a query against a source that is not compatible with
// the "main" source, executed through a mocked connection.
func reporting(t *testing.T) (*SelectQuery, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	eb := Dialect(dialect.Postgres, WithSource(NewDataSource("reporting")))
	q := eb.Select("category_id").
		From("top_categories").
		Where(eb.Where("score", OpGT, 10)).
		As(ColumnInt32).
		Via(OpenDB(dialect.Postgres, db))
	return q, mock
}

func TestMaterializer_Resolve(t *testing.T) {
	ctx := context.Background()
	main := NewDataSource("main")

	t.Run("Correlated", func(t *testing.T) {
		m := NewMaterializer()
		q := NewListQuery(main, ColumnInt32, 1)
		res, err := m.Resolve(ctx, main.Child("replica"), Dialect(dialect.SQLServer, WithSource(main)).Select("ID").From("T"))
		require.NoError(t, err)
		assert.True(t, res.Correlated)
		assert.Equal(t, "SELECT [ID] FROM [T]", res.Text)

		res, err = m.Resolve(ctx, main, q)
		require.NoError(t, err)
		assert.False(t, res.Correlated, "in-memory lists are never embedded")
		assert.Equal(t, 1, res.List.Len())
	})

	t.Run("OtherDialect", func(t *testing.T) {
		main := NewDataSource("main").WithDialect(dialect.SQLServer)
		pg := main.Child("pg").WithDialect(dialect.Postgres)
		q := Dialect(dialect.Postgres, WithSource(pg)).Select("id").From("users").WithoutMaterialization()

		m := NewMaterializer()
		_, err := m.Resolve(ctx, main, q)
		require.True(t, wherekit.IsMaterializationDisallowed(err), "never embedded into another dialect")

		res, err := m.Resolve(ctx, pg.Child("archive"), q)
		require.NoError(t, err)
		assert.True(t, res.Correlated)
		assert.Equal(t, `SELECT "id" FROM "users"`, res.Text)
	})

	t.Run("Query", func(t *testing.T) {
		q, mock := reporting(t)
		mock.ExpectQuery(regexp.QuoteMeta(reportingQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"category_id"}).AddRow(5).AddRow(nil).AddRow(7))

		m := NewMaterializer()
		res, err := m.Resolve(ctx, main, q)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
		assert.False(t, res.Correlated)
		assert.Equal(t, MaterializedList[int32]{5, 7}, res.List)
		assert.Equal(t, ColumnInt32, res.List.Type())

		stats := m.Stats().Snapshot()
		assert.EqualValues(t, 1, stats.Materializations)
		assert.EqualValues(t, 2, stats.Rows)
		assert.Zero(t, stats.Errors)
	})

	t.Run("QueryError", func(t *testing.T) {
		q, mock := reporting(t)
		mock.ExpectQuery(regexp.QuoteMeta(reportingQuery)).WillReturnError(errors.New("connection reset"))

		m := NewMaterializer()
		_, err := m.Resolve(ctx, main, q)
		var merr *wherekit.MaterializeError
		require.True(t, errors.As(err, &merr))
		assert.Equal(t, "reporting", merr.Source)
		assert.Contains(t, err.Error(), "connection reset")
		assert.EqualValues(t, 1, m.Stats().Snapshot().Errors)
	})

	t.Run("MaxRows", func(t *testing.T) {
		m := NewMaterializer(WithMaxRows(2))
		_, err := m.Resolve(ctx, main, NewListQuery(NewDataSource("ids"), ColumnInt64, 1, 2, 3))
		var merr *wherekit.MaterializeError
		require.True(t, errors.As(err, &merr))
		assert.Contains(t, err.Error(), "limit is 2")

		res, err := m.Resolve(ctx, main, NewListQuery(NewDataSource("ids"), ColumnInt64, 1, 2))
		require.NoError(t, err)
		assert.Equal(t, 2, res.List.Len())
	})

	t.Run("Disallowed", func(t *testing.T) {
		q, _ := reporting(t)
		m := NewMaterializer()
		_, err := m.Resolve(ctx, main, q.WithoutMaterialization())
		require.True(t, errors.Is(err, wherekit.ErrMaterializationDisallowed))
		assert.Zero(t, m.Stats().Snapshot().Materializations)

		m = NewMaterializer(DisallowMaterialization())
		_, err = m.Resolve(ctx, main, NewListQuery(NewDataSource("ids"), ColumnInt64, 1))
		require.True(t, wherekit.IsMaterializationDisallowed(err))
		res, err := m.Resolve(ctx, main, Dialect(dialect.SQLServer, WithSource(main)).Select("ID").From("T"))
		require.NoError(t, err)
		assert.True(t, res.Correlated)
	})

	t.Run("Unsupported", func(t *testing.T) {
		m := NewMaterializer()
		_, err := m.Resolve(ctx, main, NewListQuery(NewDataSource("ids"), ColumnTime, time.Now()))
		require.True(t, errors.Is(err, wherekit.ErrUnsupportedType))
		var merr *wherekit.MaterializeError
		assert.False(t, errors.As(err, &merr))
		assert.EqualValues(t, 1, m.Stats().Snapshot().Errors)
	})

	t.Run("Nil", func(t *testing.T) {
		_, err := NewMaterializer().Resolve(ctx, main, nil)
		require.True(t, wherekit.IsArgumentError(err))
	})
}

func TestMaterializer_SlowHook(t *testing.T) {
	var (
		calls  int
		source string
		rows   int
	)
	m := NewMaterializer(
		WithSlowThreshold(-1),
		WithSlowHook(func(_ context.Context, src string, n int, _ time.Duration) {
			calls++
			source, rows = src, n
		}),
	)
	_, err := m.Resolve(context.Background(), nil, NewListQuery(NewDataSource("ids"), ColumnString, "a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "ids", source)
	assert.Equal(t, 3, rows)
	assert.EqualValues(t, 1, m.Stats().Snapshot().Slow)

	m.SetSlowThreshold(time.Hour)
	assert.Equal(t, time.Hour, m.SlowThreshold())
	_, err = m.Resolve(context.Background(), nil, NewListQuery(NewDataSource("ids"), ColumnString, "a"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	m.Stats().Reset()
	assert.Zero(t, m.Stats().Snapshot().Materializations)
}

func TestMaterializer_ResultCache(t *testing.T) {
	ctx := context.Background()
	main := NewDataSource("main")
	cache := newMapCache()
	m := NewMaterializer(WithResultCache(cache, time.Minute))
	b := Dialect(dialect.Postgres, WithSource(main), WithMaterializer(m))

	q, mock := reporting(t)
	mock.ExpectQuery(regexp.QuoteMeta(reportingQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"category_id"}).AddRow(5).AddRow(7))

	p1, err := b.P().WhereInQuery(ctx, "category_id", q)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// Served from the cache: no further query is expected.
	p2, err := b.P().WhereInQuery(ctx, "category_id", q)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, cache.sets)
	assert.True(t, Equal(p1, p2))
	assert.Equal(t, `"category_id" = ANY(@p0)`, p2.Text())
	v, _ := p2.Params().Get("p0")
	assert.Equal(t, []int32{5, 7}, v)
}

func TestMaterializer_ResultCacheKey(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	m := NewMaterializer(WithResultCache(cache, time.Minute))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)
	eb := Dialect(dialect.Postgres, WithSource(NewDataSource("reporting")))
	query := func(score any) *SelectQuery {
		return eb.Select("category_id").
			From("top_categories").
			Where(eb.Where("score", OpGT, score)).
			As(ColumnInt32).
			Via(drv)
	}
	mock.ExpectQuery(regexp.QuoteMeta(reportingQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"category_id"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta(reportingQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"category_id"}).AddRow(7))

	main := NewDataSource("main")
	res, err := m.Resolve(ctx, main, query(10))
	require.NoError(t, err)
	assert.Equal(t, MaterializedList[int32]{5}, res.List)

	// Same text, same %v rendering, different parameter type.
	res, err = m.Resolve(ctx, main, query("10"))
	require.NoError(t, err)
	assert.Equal(t, MaterializedList[int32]{7}, res.List)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 2, cache.sets)
	assert.Len(t, cache.data, 2)

	same := cacheParams(NewParameterSet(Param{Name: "p0", Value: 10}))
	assert.Equal(t, same, cacheParams(NewParameterSet(Param{Name: "p0", Value: 10})))
	assert.NotEqual(t, same, cacheParams(NewParameterSet(Param{Name: "p0", Value: "10"})))
}

func TestMaterializeStats_String(t *testing.T) {
	s := StatsSnapshot{Materializations: 2, Rows: 10, TotalDuration: 4 * time.Millisecond, Slow: 1}
	assert.Equal(t, 2*time.Millisecond, s.AvgDuration())
	assert.Equal(t, "materializations=2 rows=10 duration=4ms avg=2ms slow=1 errors=0", s.String())
	assert.Zero(t, StatsSnapshot{}.AvgDuration())
}
