package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/wherekit"
)

// Resolution is the outcome of resolving a nested query against the data
// source of a predicate.
type Resolution struct {
	// Correlated is set when the query is embedded as a sub-select.
	Correlated bool
	// Text and Params hold the sub-select of a correlated resolution.
	Text   string
	Params *ParameterSet
	// List holds the values of a materialized resolution.
	List Materialized
}

// SlowMaterializeHook is called when a materialization exceeds the slow
// threshold.
type SlowMaterializeHook func(ctx context.Context, source string, rows int, duration time.Duration)

// Materializer decides whether a nested query is embedded as a sub-select
// or executed up front, and executes it in the latter case.
type Materializer struct {
	logger        *slog.Logger
	stats         *MaterializeStats
	maxRows       int
	disallow      bool
	mu            sync.RWMutex
	slowThreshold time.Duration
	slowHook      SlowMaterializeHook
	cache         wherekit.Cache
	cacheTTL      time.Duration
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*Materializer)

// WithMaxRows limits the number of rows a materialization may read.
// Zero means no limit.
func WithMaxRows(n int) MaterializerOption {
	return func(m *Materializer) {
		m.maxRows = n
	}
}

// DisallowMaterialization makes every nested query from an incompatible
// source fail with MaterializationDisallowedError.
func DisallowMaterialization() MaterializerOption {
	return func(m *Materializer) {
		m.disallow = true
	}
}

// WithSlowThreshold sets the threshold for slow materialization detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) MaterializerOption {
	return func(m *Materializer) {
		m.slowThreshold = d
	}
}

// WithSlowHook sets a callback function for slow materializations.
func WithSlowHook(hook SlowMaterializeHook) MaterializerOption {
	return func(m *Materializer) {
		m.slowHook = hook
	}
}

// WithSlowLog logs slow materializations with the materializer logger.
func WithSlowLog() MaterializerOption {
	return func(m *Materializer) {
		m.slowHook = func(ctx context.Context, source string, rows int, duration time.Duration) {
			m.logger.WarnContext(ctx, "slow materialization detected", "source", source, "rows", rows, "duration", duration)
		}
	}
}

// WithResultCache caches the results of materialized queries that can be
// rendered as SQL. Cache failures are logged and otherwise ignored.
func WithResultCache(c wherekit.Cache, ttl time.Duration) MaterializerOption {
	return func(m *Materializer) {
		m.cache = c
		m.cacheTTL = ttl
	}
}

// WithMaterializerLogger sets the logger. Default is slog.Default().
func WithMaterializerLogger(l *slog.Logger) MaterializerOption {
	return func(m *Materializer) {
		m.logger = l
	}
}

// NewMaterializer returns a Materializer.
func NewMaterializer(opts ...MaterializerOption) *Materializer {
	m := &Materializer{
		stats:         &MaterializeStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Stats returns the materialization statistics.
func (m *Materializer) Stats() *MaterializeStats {
	return m.stats
}

// SlowThreshold returns the current slow materialization threshold.
func (m *Materializer) SlowThreshold() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slowThreshold
}

// SetSlowThreshold updates the slow materialization threshold.
func (m *Materializer) SetSlowThreshold(threshold time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slowThreshold = threshold
}

// Resolve embeds q as a sub-select when its source is compatible with
// parent. Otherwise, q is executed and its single column is read into a
// typed list, unless q disallows materialization.
func (m *Materializer) Resolve(ctx context.Context, parent *DataSource, q Nested) (Resolution, error) {
	if isNil(q) {
		return Resolution{}, wherekit.NewArgumentError("query", "nested query is nil")
	}
	if embeddable(q) && parent.Compatible(q.Source()) {
		text, params, err := q.SubQuery()
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Correlated: true, Text: text, Params: params}, nil
	}
	src := q.Source().String()
	if m.disallow || !q.AllowMaterialization() {
		return Resolution{}, wherekit.NewMaterializationDisallowedError(parent.String(), src)
	}
	start := time.Now()
	key, col := m.cached(ctx, q)
	var err error
	if col == nil {
		col, err = q.Result(ctx)
		if err == nil && col != nil && key != "" {
			m.store(ctx, key, col)
		}
	}
	if err == nil && col == nil {
		err = errors.New("query returned no result column")
	}
	if err == nil && m.maxRows > 0 && len(col.Values) > m.maxRows {
		err = fmt.Errorf("result has %d rows, limit is %d", len(col.Values), m.maxRows)
	}
	var list Materialized
	if err == nil {
		list, err = Materialize(col)
	}
	rows := 0
	if list != nil && err == nil {
		rows = list.Len()
	}
	m.record(ctx, src, rows, start, err)
	switch {
	case wherekit.IsUnsupportedType(err):
		return Resolution{}, err
	case err != nil:
		return Resolution{}, wherekit.NewMaterializeError(src, err)
	}
	m.logger.DebugContext(ctx, "materialized nested query",
		"source", src, "type", list.Type(), "rows", rows, "duration", time.Since(start))
	return Resolution{List: list}, nil
}

func (m *Materializer) record(ctx context.Context, source string, rows int, start time.Time, err error) {
	duration := time.Since(start)
	m.stats.Materializations.Add(1)
	m.stats.Rows.Add(int64(rows))
	m.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		m.stats.Errors.Add(1)
	}

	m.mu.RLock()
	threshold := m.slowThreshold
	hook := m.slowHook
	m.mu.RUnlock()

	if duration > threshold {
		m.stats.Slow.Add(1)
		if hook != nil {
			hook(ctx, source, rows, duration)
		}
	}
}

// cached looks q up in the result cache. The returned key is empty when q
// cannot be cached.
func (m *Materializer) cached(ctx context.Context, q Nested) (string, *ResultColumn) {
	if m.cache == nil || !embeddable(q) {
		return "", nil
	}
	text, params, err := q.SubQuery()
	if err != nil {
		return "", nil
	}
	key := wherekit.CacheKey{Source: q.Source().String(), Query: text, Params: cacheParams(params)}.String()
	data, err := m.cache.Get(ctx, key)
	if err != nil {
		m.logger.WarnContext(ctx, "reading materialization cache", "key", key, "err", err)
		return key, nil
	}
	if data == nil {
		return key, nil
	}
	col := &ResultColumn{}
	if err := msgpack.Unmarshal(data, col); err != nil {
		m.logger.WarnContext(ctx, "decoding cached materialization", "key", key, "err", err)
		return key, nil
	}
	return key, col
}

func (m *Materializer) store(ctx context.Context, key string, col *ResultColumn) {
	data, err := msgpack.Marshal(col)
	if err == nil {
		err = m.cache.Set(ctx, key, data, m.cacheTTL)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "writing materialization cache", "key", key, "err", err)
	}
}

// cacheParams renders params with their msgpack encoding, so that values of
// different types never share a key.
func cacheParams(params *ParameterSet) string {
	var b strings.Builder
	for _, p := range params.All() {
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.Write(encodeValue(p.Value))
		b.WriteByte(';')
	}
	return b.String()
}

// embeddable reports whether q can be rendered as a sub-select at all.
func embeddable(q Nested) bool {
	e, ok := q.(interface{ Embeddable() bool })
	return !ok || e.Embeddable()
}
