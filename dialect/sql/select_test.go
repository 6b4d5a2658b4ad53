package sql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/wherekit"
	"github.com/syssam/wherekit/dialect"
)

func TestSelectQuery_SubQuery(t *testing.T) {
	b := Dialect(dialect.SQLServer)
	tests := []struct {
		name string
		q    *SelectQuery
		want string
	}{
		{
			name: "NoFilter",
			q:    b.Select("ID").From("dbo.Users"),
			want: "SELECT [ID] FROM [dbo].[Users]",
		},
		{
			name: "Filter",
			q:    b.Select("ID").From("Users").Where(b.Where("Age", OpGT, 18).Or().WhereNull("Age")),
			want: "SELECT [ID] FROM [Users] WHERE [Age] > @p0 OR [Age] IS NULL",
		},
		{
			name: "NoResults",
			q:    b.Select("ID").From("Users").Where(b.P().WhereIn("ID")),
			want: "SELECT [ID] FROM [Users] WHERE 1 = 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, _, err := tt.q.SubQuery()
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}

	t.Run("Errors", func(t *testing.T) {
		_, _, err := b.Select("").From("Users").SubQuery()
		require.True(t, wherekit.IsArgumentError(err))
		_, _, err = b.Select("ID").SubQuery()
		require.True(t, wherekit.IsArgumentError(err))
		_, _, err = b.Select("ID").From("Users").Where(b.Where("", OpEQ, 1)).SubQuery()
		require.True(t, wherekit.IsArgumentError(err))
	})
}

func TestSelectQuery_Query(t *testing.T) {
	b := Dialect(dialect.MySQL)
	query, args, err := b.Select("id").From("users").Where(b.Where("age", OpGT, 18).WhereEquals("country", "NZ")).Query()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `users` WHERE `age` > ? AND `country` = ?", query)
	assert.Equal(t, []any{18, "NZ"}, args)
}

func TestSelectQuery_Result(t *testing.T) {
	ctx := context.Background()
	b := Dialect(dialect.MySQL)

	t.Run("Rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT `name` FROM `users` WHERE `age` > ?")).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a8m").AddRow("nati"))

		col, err := b.Select("name").From("users").Where(b.Where("age", OpGT, 30)).
			As(ColumnString).
			Via(OpenDB(dialect.MySQL, db)).
			Result(ctx)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, "name", col.Name)
		assert.Equal(t, ColumnString, col.Type)
		assert.Len(t, col.Values, 2)

		list, err := Materialize(col)
		require.NoError(t, err)
		assert.Equal(t, MaterializedList[string]{"a8m", "nati"}, list)
	})

	t.Run("NoResults", func(t *testing.T) {
		col, err := b.Select("id").From("users").Where(b.P().WhereIn("id")).As(ColumnInt64).Result(ctx)
		require.NoError(t, err)
		assert.Empty(t, col.Values)
	})

	t.Run("NoDriver", func(t *testing.T) {
		_, err := b.Select("id").From("users").Result(ctx)
		require.Error(t, err)
	})

	t.Run("Source", func(t *testing.T) {
		src := NewDataSource("archive")
		q := b.Select("id").From("users").On(src)
		assert.Same(t, src, q.Source())
		assert.True(t, q.AllowMaterialization())
		assert.False(t, q.WithoutMaterialization().AllowMaterialization())
	})
}
