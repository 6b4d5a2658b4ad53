package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/wherekit"
	"github.com/syssam/wherekit/dialect"
	"github.com/syssam/wherekit/dialect/sql"
)

const sample = `
logger:
  level: debug
  type: json
  output: stderr
dialect: mssql
source: main
allow_materialization: false
max_materialized_rows: 100
slow_materialization: 250ms
sources:
  - name: replica
    parent: main
  - name: main
    dsn: sqlserver://app@localhost/main
  - name: reporting
    dialect: postgresql
    dsn: postgres://reports@localhost/reports?sslmode=disable
  - name: archive
    parent: reporting
  - name: cache
    dialect: sqlite
    dsn: "file::memory:"
  - name: legacy
    dialect: mysql
    dsn: "app:secret@tcp(localhost:3306)/legacy"
`

func TestDecode(t *testing.T) {
	cfg, err := Decode([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "mssql", cfg.Dialect)
	require.NotNil(t, cfg.AllowMaterialization)
	assert.False(t, *cfg.AllowMaterialization)
	assert.Equal(t, 100, cfg.MaxMaterializedRows)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowMaterialization)
	require.Len(t, cfg.Sources, 6)
	assert.Equal(t, SourceConfig{Name: "replica", Parent: "main"}, cfg.Sources[0])

	_, err = Decode([]byte("dialekt: postgres\n"))
	require.Error(t, err, "unknown keys are rejected")

	cfg, err = Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Sources)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wherekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Source)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfig_Parse(t *testing.T) {
	cfg, err := Decode([]byte(sample))
	require.NoError(t, err)
	b, sources, logger, err := cfg.Parse()
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.IsType(t, &slog.JSONHandler{}, logger.Handler())

	assert.Equal(t, dialect.SQLServer, b.Lexicon().Dialect())
	main, _ := sources.Get("main")
	assert.Same(t, main, b.Source())
	assert.Equal(t, 250*time.Millisecond, b.Materializer().SlowThreshold())

	replica, ok := sources.Get("replica")
	require.True(t, ok)
	assert.Same(t, main, replica.Parent())
	assert.Equal(t, []string{"replica", "main", "reporting", "archive", "cache", "legacy"}, sources.Names())
	assert.Equal(t, dialect.SQLServer, sources.Dialect("replica"))
	assert.Equal(t, dialect.Postgres, sources.Dialect("archive"), "children inherit the parent dialect")

	t.Run("Correlated", func(t *testing.T) {
		rb, err := sources.Builder("replica")
		require.NoError(t, err)
		q := rb.Select("ID").From("Users")
		p, err := b.P().WhereInQuery(context.Background(), "UserID", q)
		require.NoError(t, err)
		assert.Equal(t, "[UserID] IN (SELECT [ID] FROM [Users])", p.Text())
	})

	t.Run("Disallowed", func(t *testing.T) {
		archive, _ := sources.Get("archive")
		q := sql.NewListQuery(archive, sql.ColumnInt64, 1, 2)
		_, err := b.P().WhereInQuery(context.Background(), "ID", q)
		require.True(t, wherekit.IsMaterializationDisallowed(err))
	})
}

func TestConfig_ParseChildDialect(t *testing.T) {
	cfg, err := Decode([]byte(`
dialect: sqlserver
source: main
sources:
  - name: main
  - name: replica
    parent: main
  - name: pg
    parent: main
    dialect: postgres
`))
	require.NoError(t, err)
	b, sources, _, err := cfg.Parse()
	require.NoError(t, err)

	main, _ := sources.Get("main")
	pg, _ := sources.Get("pg")
	replica, _ := sources.Get("replica")
	assert.Equal(t, dialect.SQLServer, main.Dialect())
	assert.Equal(t, dialect.SQLServer, replica.Dialect())
	assert.Equal(t, dialect.Postgres, pg.Dialect())
	assert.False(t, main.Compatible(pg))
	assert.True(t, main.Compatible(replica))

	pb, err := sources.Builder("pg")
	require.NoError(t, err)
	q := pb.Select("id").From("users").Where(pb.Where("age", sql.OpGT, 18)).WithoutMaterialization()
	_, err = b.P().WhereInQuery(context.Background(), "UserID", q)
	require.True(t, wherekit.IsMaterializationDisallowed(err), "a postgres sub-select is never embedded into sqlserver text")

	rb, err := sources.Builder("replica")
	require.NoError(t, err)
	p, err := b.P().WhereInQuery(context.Background(), "UserID", rb.Select("ID").From("Users"))
	require.NoError(t, err)
	assert.Equal(t, "[UserID] IN (SELECT [ID] FROM [Users])", p.Text())
}

func TestConfig_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"LogLevel", Config{Logger: LoggerConfig{Level: "verbose"}}},
		{"LogType", Config{Logger: LoggerConfig{Type: "xml"}}},
		{"LogOutput", Config{Logger: LoggerConfig{Output: "syslog"}}},
		{"Dialect", Config{Dialect: "oracle"}},
		{"SourceDialect", Config{Sources: []SourceConfig{{Name: "a", Dialect: "db2"}}}},
		{"EmptyName", Config{Sources: []SourceConfig{{Name: " "}}}},
		{"Duplicate", Config{Sources: []SourceConfig{{Name: "a"}, {Name: "a"}}}},
		{"UnknownParent", Config{Sources: []SourceConfig{{Name: "a", Parent: "b"}}}},
		{"Cycle", Config{Sources: []SourceConfig{{Name: "a", Parent: "b"}, {Name: "b", Parent: "a"}}}},
		{"DefaultSource", Config{Source: "main"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := tt.cfg.Parse()
			require.Error(t, err)
		})
	}
}

func TestParseLoggerConfig(t *testing.T) {
	logger, err := parseLoggerConfig(LoggerConfig{})
	require.NoError(t, err)
	assert.IsType(t, &slog.TextHandler{}, logger.Handler())
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger, err = parseLoggerConfig(LoggerConfig{Level: "warn", Type: "colored-text"})
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestSources_Open(t *testing.T) {
	cfg, err := Decode([]byte(sample))
	require.NoError(t, err)
	_, sources, _, err := cfg.Parse()
	require.NoError(t, err)

	t.Run("SQLite", func(t *testing.T) {
		drv, err := sources.Open("cache")
		require.NoError(t, err)
		defer drv.Close()
		assert.Equal(t, dialect.SQLite, drv.Dialect())
		require.NoError(t, drv.DB().Ping())
	})

	t.Run("Postgres", func(t *testing.T) {
		drv, err := sources.Open("reporting")
		require.NoError(t, err)
		defer drv.Close()
		assert.Equal(t, dialect.Postgres, drv.Dialect())
	})

	t.Run("MySQL", func(t *testing.T) {
		drv, err := sources.Open("legacy")
		require.NoError(t, err)
		defer drv.Close()
		assert.Equal(t, dialect.MySQL, drv.Dialect())
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := sources.Open("unknown")
		require.Error(t, err)
		_, err = sources.Open("replica")
		require.Error(t, err, "no dsn")
		_, err = sources.Open("main")
		require.Error(t, err, "no driver for sqlserver")
	})

	t.Run("InvalidDSN", func(t *testing.T) {
		s, err := newSources(dialect.MySQL, []SourceConfig{{Name: "bad", DSN: "app:secret@tcp(localhost:3306"}})
		require.NoError(t, err)
		_, err = s.Open("bad")
		require.Error(t, err)
	})
}

func TestWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wherekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialect: postgres\n"), 0o600))

	w, err := NewWatcher(path, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer w.Close()

	var (
		mu  sync.Mutex
		got string
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(cfg Config) {
			mu.Lock()
			got = cfg.Dialect
			mu.Unlock()
		})
	}()

	// A file that fails to decode is skipped.
	require.NoError(t, os.WriteFile(path, []byte("dialect: [\n"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("dialect: mysql\n"), 0o600))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got == "mysql"
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
