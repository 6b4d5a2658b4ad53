package sql

import (
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/wherekit/dialect"
)

func TestBind(t *testing.T) {
	params := NewParameterSet(Param{Name: "p0", Value: 1}, Param{Name: "p1", Value: 2})
	tests := []struct {
		dialect string
		text    string
		want    string
		args    []any
	}{
		{
			dialect: dialect.SQLServer,
			text:    "[A] = @p0 OR [B] = @p0 OR [C] = @p1",
			want:    "[A] = @p0 OR [B] = @p0 OR [C] = @p1",
			args:    []any{sql.Named("p0", 1), sql.Named("p1", 2)},
		},
		{
			dialect: dialect.Postgres,
			text:    `"A" = @p0 OR "B" = @p0 OR "C" = @p1`,
			want:    `"A" = $1 OR "B" = $1 OR "C" = $2`,
			args:    []any{1, 2},
		},
		{
			dialect: dialect.MySQL,
			text:    "`A` = @p0 OR `B` = @p0 OR `C` = @p1",
			want:    "`A` = ? OR `B` = ? OR `C` = ?",
			args:    []any{1, 1, 2},
		},
		{
			dialect: dialect.SQLite,
			text:    "`C` = @p1 AND `A` = @p0",
			want:    "`C` = ? AND `A` = ?",
			args:    []any{2, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			lex, err := NewLexicon(tt.dialect)
			require.NoError(t, err)
			query, args, err := Bind(lex, tt.text, params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestBind_Array(t *testing.T) {
	lex, _ := NewLexicon(dialect.Postgres)
	params := NewParameterSet(
		Param{Name: "p0", Value: []int64{1, 2}},
		Param{Name: "p1", Value: []byte("raw")},
		Param{Name: "p2", Value: uuid.MustParse("8f6b4ad4-3c0d-4a4e-9a57-2b1f2b0a3f11")},
	)
	query, args, err := Bind(lex, `"ID" = ANY(@p0) AND "Data" = @p1 AND "Key" = @p2`, params)
	require.NoError(t, err)
	assert.Equal(t, `"ID" = ANY($1) AND "Data" = $2 AND "Key" = $3`, query)
	require.Len(t, args, 3)

	v, err := args[0].(driver.Valuer).Value()
	require.NoError(t, err)
	assert.Equal(t, "{1,2}", v)
	assert.Equal(t, []byte("raw"), args[1])
	assert.IsType(t, uuid.UUID{}, args[2])
}

func TestBind_Errors(t *testing.T) {
	lex, _ := NewLexicon(dialect.SQLServer)
	_, _, err := Bind(lex, "[A] = @p0 AND [B] = @p1", NewParameterSet(Param{Name: "p0", Value: 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@p1")

	query, args, err := Bind(lex, "[A] = '@p0'", nil)
	require.NoError(t, err)
	assert.Equal(t, "[A] = '@p0'", query)
	assert.Empty(t, args)
}
